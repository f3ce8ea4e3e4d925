package zookeeper

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// PasswordLen is the size of a session password in bytes.
const PasswordLen = 16

// ClientID identifies a session on the server. A zero ClientID asks for a new
// session.
type ClientID struct {
	ID     int64
	Passwd [PasswordLen]byte
}

func (c ClientID) IsZero() bool {
	return c == ClientID{}
}

func (c ClientID) String() string {
	return FormatSessionID(c.ID)
}

// FormatSessionID renders the session id as lowercase hex. Negative ids are
// rendered through their unsigned 64-bit view so that ParseSessionID restores them.
func FormatSessionID(id int64) string {
	return strconv.FormatUint(uint64(id), 16)
}

func ParseSessionID(s string) (int64, error) {
	u, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return int64(u), nil
}

// FormatPassword renders the password as 32 hex digits, most significant nibble
// first.
func FormatPassword(passwd [PasswordLen]byte) string {
	return strings.ToUpper(hex.EncodeToString(passwd[:]))
}

// ParsePassword decodes exactly 32 hex digits of either case.
func ParsePassword(s string) ([PasswordLen]byte, error) {
	var passwd [PasswordLen]byte
	if len(s) != 2*PasswordLen {
		return passwd, fmt.Errorf("password must be %d hex characters, got %d", 2*PasswordLen, len(s))
	}
	if _, err := hex.Decode(passwd[:], []byte(s)); err != nil {
		return passwd, fmt.Errorf("invalid password: %w", err)
	}
	return passwd, nil
}

// ParseClientID builds a ClientID from its external representation.
func ParseClientID(id, passwd string) (ClientID, error) {
	sid, err := ParseSessionID(id)
	if err != nil {
		return ClientID{}, err
	}
	p, err := ParsePassword(passwd)
	if err != nil {
		return ClientID{}, err
	}
	return ClientID{ID: sid, Passwd: p}, nil
}
