package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/gomoku/logger"
	"github.com/wfunc/gomoku/network"
)

const usage = `commands:
  create | quick | find | join <id> | cancel <id>
  move <x> <y> | hb | state | exit
  me | top [n] | replays | replay <id>`

type client struct {
	conn    *websocket.Conn
	seq     uint32
	mutex   sync.Mutex
	matchID string // 读协程也会写入
}

func (c *client) currentMatch() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.matchID
}

func (c *client) setMatch(id string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.matchID = id
}

// send formats and sends a message to the WebSocket server.
func (c *client) send(msgID uint16, payload interface{}) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	c.seq++
	packet, err := network.Encode(msgID, c.seq, data)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, packet)
}

func (c *client) match(args []string) network.MatchRequest {
	if len(args) > 0 {
		c.setMatch(args[0])
	}
	return network.MatchRequest{MatchID: c.currentMatch()}
}

// command 解析一行输入，返回要发送的消息
func (c *client) command(line string) (uint16, interface{}, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, false
	}
	args := fields[1:]
	switch fields[0] {
	case "create":
		return network.MsgTypeCreateMatch, nil, true
	case "quick":
		return network.MsgTypeQuickMatch, nil, true
	case "find":
		return network.MsgTypeFindMatch, nil, true
	case "join":
		return network.MsgTypeJoinMatch, c.match(args), true
	case "cancel":
		return network.MsgTypeCancelMatch, c.match(args), true
	case "move":
		if len(args) != 2 {
			return 0, nil, false
		}
		x, errX := strconv.Atoi(args[0])
		y, errY := strconv.Atoi(args[1])
		if errX != nil || errY != nil {
			return 0, nil, false
		}
		return network.MsgTypeMove, network.MoveRequest{MatchID: c.currentMatch(), X: x, Y: y}, true
	case "hb":
		return network.MsgTypeHeartbeat, c.match(args), true
	case "state":
		return network.MsgTypeMatchState, c.match(args), true
	case "exit":
		return network.MsgTypeExit, c.match(args), true
	case "me":
		return network.MsgTypePlayer, nil, true
	case "top":
		limit := 0
		if len(args) > 0 {
			limit, _ = strconv.Atoi(args[0])
		}
		return network.MsgTypeLeaderboard, network.LeaderboardRequest{Limit: limit}, true
	case "replays":
		return network.MsgTypeReplays, nil, true
	case "replay":
		if len(args) == 0 {
			return 0, nil, false
		}
		return network.MsgTypeReplay, network.MatchRequest{MatchID: args[0]}, true
	}
	return 0, nil, false
}

// remember 记下服务端返回的 match_id，后续命令可省略
func (c *client) remember(data []byte) {
	var resp struct {
		Data struct {
			MatchID string `json:"match_id"`
		} `json:"data"`
	}
	if json.Unmarshal(data, &resp) == nil && resp.Data.MatchID != "" {
		c.setMatch(resp.Data.MatchID)
	}
}

func main() {
	addr := flag.String("addr", "localhost:8081", "websocket server address")
	userID := flag.Int64("user", 1, "player id")
	username := flag.String("name", "", "display name")
	flag.Parse()

	logger.InitDevelopment()
	defer logger.Sync()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	logger.Log.Infof("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	c := &client{conn: conn}

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				logger.Log.Infof("Read error: %v", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				logger.Log.Warnf("Received invalid packet of size %d", len(message))
				continue
			}
			c.remember(packet.Data)
			logger.Log.Infof("<- RECV (ID: %d, seq: %d): %s", packet.MsgID, packet.Seq, string(packet.Data))
		}
	}()

	if err := c.send(network.MsgTypeLogin, network.LoginRequest{UserID: *userID, Username: *username}); err != nil {
		logger.Log.Errorf("Write error: %v", err)
		return
	}
	logger.Log.Info(usage)

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			logger.Log.Info("Interrupt received, closing connection.")
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				logger.Log.Errorf("Write close error: %v", err)
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
			msgID, payload, valid := c.command(line)
			if !valid {
				logger.Log.Info(usage)
				continue
			}
			if err := c.send(msgID, payload); err != nil {
				logger.Log.Errorf("Write error: %v", err)
				return
			}
		}
	}
}
