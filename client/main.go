package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/serra/network"
)

var errUnknownCommand = errors.New("unknown command")

const usage = `commands:
  create [name]        create a room
  join CODE [name]     join a room
  ready | unready
  play CARD            e.g. play 7♠
  swap                 take the face-up card
  chat TEXT
  leave
  ping`

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// parseCommand turns one input line into a request frame.
func parseCommand(line string) (uint16, any, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, errUnknownCommand
	}
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	switch strings.ToLower(fields[0]) {
	case "create":
		return network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: strings.Join(fields[1:], " ")}, nil
	case "join":
		if len(fields) < 2 {
			return 0, nil, fmt.Errorf("join needs a room code")
		}
		return network.MsgTypeJoinRoom, network.JoinRoomRequest{Code: fields[1], Name: strings.Join(fields[2:], " ")}, nil
	case "ready", "unready":
		ready := fields[0] == "ready"
		return network.MsgTypeReady, network.ReadyRequest{Ready: &ready}, nil
	case "play":
		if arg(1) == "" {
			return 0, nil, fmt.Errorf("play needs a card")
		}
		return network.MsgTypePlayCard, network.PlayCardRequest{Card: arg(1)}, nil
	case "swap":
		return network.MsgTypeSwapTrump, network.RoomRequest{}, nil
	case "chat":
		_, text, _ := strings.Cut(strings.TrimSpace(line), " ")
		return network.MsgTypeChat, network.ChatRequest{Msg: text}, nil
	case "leave":
		return network.MsgTypeLeaveRoom, network.RoomRequest{}, nil
	case "ping":
		return network.MsgTypeHeartbeat, nil, nil
	}
	return 0, nil, fmt.Errorf("%w: %s", errUnknownCommand, fields[0])
}

func main() {
	addr := flag.String("addr", "localhost:8080", "game server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Println("Client started.\n" + usage)

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			msgID, payload, err := parseCommand(line)
			if err != nil {
				log.Printf("%v\n%s", err, usage)
				continue
			}
			var data []byte
			if payload != nil {
				data, _ = json.Marshal(payload)
			}
			if err := send(c, msgID, data); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT (ID: %d): %s", msgID, string(data))
		}
	}
}
