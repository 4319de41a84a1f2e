// network/connection.go
package network

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HeaderSize 包头: 2字节消息ID + 4字节序号 + 2字节数据长度
const HeaderSize = 8

var ErrPayloadTooLarge = errors.New("payload exceeds 65535 bytes")

type Packet struct {
	MsgID  uint16
	Seq    uint32
	Length uint16
	Data   []byte
}

type Connection interface {
	Send(msgID uint16, seq uint32, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadPacket() (*Packet, error)
}

// Encode 封包
func Encode(msgID uint16, seq uint32, data []byte) ([]byte, error) {
	if len(data) > math.MaxUint16 {
		return nil, ErrPayloadTooLarge
	}
	packet := make([]byte, HeaderSize+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint32(packet[2:6], seq)
	binary.BigEndian.PutUint16(packet[6:8], uint16(len(data)))
	copy(packet[HeaderSize:], data)
	return packet, nil
}

// Decode 拆包，长度字段之后多余的字节被忽略
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, io.ErrShortBuffer
	}
	length := binary.BigEndian.Uint16(data[6:8])
	if len(data) < HeaderSize+int(length) {
		return nil, io.ErrShortBuffer
	}
	return &Packet{
		MsgID:  binary.BigEndian.Uint16(data[0:2]),
		Seq:    binary.BigEndian.Uint32(data[2:6]),
		Length: length,
		Data:   data[HeaderSize : HeaderSize+int(length)],
	}, nil
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(msgID uint16, seq uint32, data []byte) error {
	packet, err := Encode(msgID, seq, data)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, packet)
}

// ReadPacket 每次读取都会顺延读超时
func (c *WSConnection) ReadPacket() (*Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.heartbeat > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}
	return Decode(data)
}

func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	_ = c.conn.SetReadDeadline(time.Now().Add(interval * 2))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
