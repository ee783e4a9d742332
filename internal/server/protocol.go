package server

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sgomezmalagon/juego-bolas/internal/sim"
)

// Client -> Server message types
const (
	MsgAdd       = "add"        // spawn one ball
	MsgAddPlayer = "add_player" // create the controllable body
	MsgClear     = "clear"      // remove every ball
	MsgResize    = "resize"     // change world bounds
	MsgInput     = "input"      // player control state
	MsgLogin     = "login"      // operator password -> token
	MsgAuth      = "auth"       // present a token
)

// Server -> Client message types
const (
	MsgWelcome = "welcome"
	MsgAdded   = "added"
	MsgPlayer  = "player"
	MsgCleared = "cleared"
	MsgResized = "resized"
	MsgToken   = "token"
	MsgError   = "error"
)

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string `json:"t"`
	Data any    `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// WelcomeMsg is sent once after the upgrade
type WelcomeMsg struct {
	Width        int  `json:"w"`
	Height       int  `json:"h"`
	AuthRequired bool `json:"auth"` // add_player and input need a token
	Authorized   bool `json:"ok"`
}

// AddedMsg acknowledges a spawned ball
type AddedMsg struct {
	ID    uint64 `json:"id"`
	Count int    `json:"n"`
}

// PlayerMsg answers add_player. OK is false when a player already exists.
type PlayerMsg struct {
	ID uint64 `json:"id,omitempty"`
	OK bool   `json:"ok"`
}

// ClearedMsg reports how many balls were removed
type ClearedMsg struct {
	Removed int `json:"n"`
}

// ResizeMsg carries new world bounds (both directions)
type ResizeMsg struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

// LoginMsg is sent by an operator
type LoginMsg struct {
	Password string `json:"password"`
}

// AuthMsg presents a previously issued token
type AuthMsg struct {
	Token string `json:"token"`
}

// TokenMsg delivers a controller token
type TokenMsg struct {
	Token string `json:"token"`
}

// ErrorMsg is sent on rejected commands
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// encodeSnapshot packs a snapshot for binary frames. Field names follow
// the json tags so JSON and msgpack renderers see the same keys.
func encodeSnapshot(s sim.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSnapshot is the inverse of encodeSnapshot
func decodeSnapshot(b []byte) (sim.Snapshot, error) {
	var s sim.Snapshot
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	err := dec.Decode(&s)
	return s, err
}
