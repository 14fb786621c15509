package model

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNoIdentity is returned when an entry carries none of the fields an
// identity can be derived from.
var ErrNoIdentity = errors.New("entry has no id, link, title or timestamp")

// Identity derives the stable dedup key for an entry. The first non-empty
// field of GUID, link, title, published time and updated time is hashed.
// The hex MD5 form matches rows written by earlier versions of the bot.
func (e *Entry) Identity() (string, error) {
	source := e.identitySource()
	if source == "" {
		return "", ErrNoIdentity
	}

	sum := md5.Sum([]byte(source))
	return hex.EncodeToString(sum[:]), nil
}

func (e *Entry) identitySource() string {
	switch {
	case e.GUID != "":
		return e.GUID
	case e.Link != "":
		return e.Link
	case e.Title != "":
		return e.Title
	case e.Published != nil:
		return e.Published.UTC().Format(time.RFC3339)
	case e.Updated != nil:
		return e.Updated.UTC().Format(time.RFC3339)
	}
	return ""
}
