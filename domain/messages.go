package domain

import "io"

// TextInput is the payload of a typed message
type TextInput struct {
	Input string `json:"input"`
}

// TextResponse carries the generated reply for both the text and the voice flow
type TextResponse struct {
	Reply string `json:"reply"`
}

// AudioUpload is an uploaded audio clip, alive for a single request only
type AudioUpload struct {
	Filename string
	Content  io.Reader
}

// Channel identifies where the raw user text came from
type Channel string

const (
	ChannelText  Channel = "text"
	ChannelVoice Channel = "voice"
)
