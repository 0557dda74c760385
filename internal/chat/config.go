package chat

import (
	"errors"
	"strings"

	"github.com/thereayou/chatsync/internal/docstore"
)

const messagesSubcollection = "messages"

// Config names the collections the engine reads and writes. It is fixed for
// the lifetime of an Engine.
type Config struct {
	RoomsCollection string
	UsersCollection string
}

func DefaultConfig() Config {
	return Config{
		RoomsCollection: "rooms",
		UsersCollection: "users",
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RoomsCollection) == "" {
		errs = append(errs, errors.New("rooms collection name is required"))
	}
	if strings.TrimSpace(c.UsersCollection) == "" {
		errs = append(errs, errors.New("users collection name is required"))
	}
	if strings.Contains(c.RoomsCollection, "/") || strings.Contains(c.UsersCollection, "/") {
		errs = append(errs, errors.New("collection names must not contain '/'"))
	}
	return errors.Join(errs...)
}

func (c Config) messagesCollection(roomID string) string {
	return docstore.Path(c.RoomsCollection, roomID, messagesSubcollection)
}
