// Command voice-client exercises a running server. It sends either a text
// message or an audio clip, over plain HTTP or the websocket, and prints the
// reply.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/satriahrh/voiceassist/internal/websocket"
)

func main() {
	server := flag.String("server", "localhost:8080", "server host:port")
	text := flag.String("text", "", "text message to send")
	audio := flag.String("audio", "", "audio clip to send")
	useWS := flag.Bool("ws", false, "use the websocket instead of HTTP")
	timeout := flag.Duration("timeout", 3*time.Minute, "how long to wait for the reply")
	flag.Parse()

	if (*text == "") == (*audio == "") {
		log.Fatal("exactly one of -text or -audio is required")
	}

	start := time.Now()
	var (
		reply string
		err   error
	)
	switch {
	case *useWS:
		reply, err = viaWebSocket(*server, *text, *audio, *timeout)
	case *text != "":
		reply, err = postText(*server, *text, *timeout)
	default:
		reply, err = postVoice(*server, *audio, *timeout)
	}
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Reply received in %v", time.Since(start).Round(time.Millisecond))
	fmt.Println(reply)
}

func postText(server, text string, timeout time.Duration) (string, error) {
	body, _ := json.Marshal(map[string]string{"input": text})
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post("http://"+server+"/text", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return readReply(resp)
}

func postVoice(server, path string, timeout time.Duration) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading audio file: %w", err)
	}
	log.Printf("Read audio file: %s (%d bytes)", path, len(data))

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	part.Write(data)
	mw.Close()

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post("http://"+server+"/voice", mw.FormDataContentType(), body)
	if err != nil {
		return "", err
	}
	return readReply(resp)
}

func readReply(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding reply: %w", err)
	}
	return out.Reply, nil
}

func viaWebSocket(server, text, audio string, timeout time.Duration) (string, error) {
	u := url.URL{Scheme: "ws", Host: server, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	if text != "" {
		msg := ws.TextMessage{
			BaseMessage: ws.BaseMessage{Type: ws.MessageTypeText, MessageID: fmt.Sprintf("cli_%d", time.Now().UnixNano())},
			Input:       text,
		}
		data, _ := json.Marshal(msg)
		err = c.WriteMessage(websocket.TextMessage, data)
	} else {
		var data []byte
		data, err = os.ReadFile(audio)
		if err != nil {
			return "", fmt.Errorf("reading audio file: %w", err)
		}
		log.Printf("Sending audio clip: %s (%d bytes)", audio, len(data))
		err = c.WriteMessage(websocket.BinaryMessage, data)
	}
	if err != nil {
		return "", fmt.Errorf("write: %w", err)
	}

	c.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}

		var base ws.BaseMessage
		if err := json.Unmarshal(message, &base); err != nil {
			log.Println("unmarshal error:", err)
			continue
		}

		switch base.Type {
		case ws.MessageTypeReply:
			var reply ws.ReplyMessage
			json.Unmarshal(message, &reply)
			c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return reply.Reply, nil
		case ws.MessageTypeError:
			var failure ws.ErrorMessage
			json.Unmarshal(message, &failure)
			return "", fmt.Errorf("server error %s: %s", failure.Code, failure.Message)
		default:
			log.Printf("Received message type: %s", base.Type)
		}
	}
}
