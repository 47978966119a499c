package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	sessionFormatVersionCurrent = 1

	maxFieldLength = math.MaxUint16
)

// Encode serialises a complete session into the versioned binary format:
//
//	version(1) | len(2) username | len(2) access | len(2) refresh | savedAt(8, unix seconds)
func Encode(s *Session) ([]byte, error) {
	if err := validateForSave(s); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(1 + 6 + len(s.Username) + len(s.AccessToken) + len(s.RefreshToken) + 8)

	buf.WriteByte(sessionFormatVersionCurrent)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"username", s.Username},
		{"access token", s.AccessToken},
		{"refresh token", s.RefreshToken},
	} {
		if len(field.value) > maxFieldLength {
			return nil, fmt.Errorf("%s too long", field.name)
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field.value))); err != nil {
			return nil, err
		}
		buf.WriteString(field.value)
	}

	var savedAt int64
	if !s.SavedAt.IsZero() {
		savedAt = s.SavedAt.Unix()
	}
	if err := binary.Write(&buf, binary.BigEndian, savedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by [Encode]. Any structural problem, including
// trailing bytes and missing fields, is reported as [ErrSessionCorrupt].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if version != sessionFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrSessionCorrupt, version)
	}

	fields := make([]string, 3)
	for i := range fields {
		value, err := readField(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
		}
		fields[i] = value
	}

	var savedAt int64
	if err := binary.Read(reader, binary.BigEndian, &savedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSessionCorrupt, reader.Len())
	}

	s := &Session{
		Username:     fields[0],
		AccessToken:  fields[1],
		RefreshToken: fields[2],
	}
	if savedAt != 0 {
		s.SavedAt = time.Unix(savedAt, 0)
	}
	if !s.Complete() {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, ErrIncompleteSession)
	}

	return s, nil
}

func readField(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", errors.New("field length exceeds input")
	}
	value := make([]byte, n)
	if _, err := io.ReadFull(r, value); err != nil {
		return "", err
	}
	return string(value), nil
}
