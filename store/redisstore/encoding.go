package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/fastauth/store"
)

const tokenFormatVersion = 1

var errCorruptRecord = errors.New("redisstore: corrupt token record")

// encodeToken writes version, user id (length-prefixed), created and expires
// as unix nanoseconds. The id is the key and is not repeated.
func encodeToken(t *store.RefreshToken) ([]byte, error) {
	if len(t.UserID) > 255 {
		return nil, errors.New("redisstore: userID too long")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(t.UserID) + 16)
	buf.WriteByte(tokenFormatVersion)
	buf.WriteByte(byte(len(t.UserID)))
	buf.WriteString(t.UserID)
	if err := binary.Write(&buf, binary.BigEndian, t.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, t.ExpiresAt.UnixNano()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeToken(id string, data []byte) (*store.RefreshToken, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil || version != tokenFormatVersion {
		return nil, errCorruptRecord
	}
	n, err := r.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}
	userID := make([]byte, n)
	if _, err := io.ReadFull(r, userID); err != nil {
		return nil, errCorruptRecord
	}
	var created, expires int64
	if err := binary.Read(r, binary.BigEndian, &created); err != nil {
		return nil, errCorruptRecord
	}
	if err := binary.Read(r, binary.BigEndian, &expires); err != nil {
		return nil, errCorruptRecord
	}
	if r.Len() != 0 {
		return nil, errCorruptRecord
	}

	return &store.RefreshToken{
		ID:        id,
		UserID:    string(userID),
		CreatedAt: time.Unix(0, created).UTC(),
		ExpiresAt: time.Unix(0, expires).UTC(),
	}, nil
}
