package chat

import (
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/models"
)

const (
	kindUser    = "user"
	kindRoom    = "room"
	kindMessage = "message"
)

// Fields stripped from the message payload because they are projected into
// the common message fields.
var reservedMessageFields = map[string]struct{}{
	"id":        {},
	"type":      {},
	"author":    {},
	"authorId":  {},
	"createdAt": {},
	"updatedAt": {},
}

// ProjectUser converts a user document. Unknown fields are dropped and
// malformed optional fields are left unset.
func ProjectUser(doc docstore.Document) (models.User, error) {
	if doc.ID == "" {
		return models.User{}, missingField(kindUser, "", "id")
	}
	f := doc.Fields
	u := models.User{
		ID:        doc.ID,
		FirstName: stringField(f, "firstName"),
		LastName:  stringField(f, "lastName"),
		ImageURL:  stringField(f, "imageUrl"),
		Metadata:  mapField(f, "metadata"),
		CreatedAt: millisField(f, "createdAt"),
		UpdatedAt: millisField(f, "updatedAt"),
		LastSeen:  millisField(f, "lastSeen"),
	}
	if role := models.Role(stringField(f, "role")); role.Valid() {
		u.Role = role
	}
	return u, nil
}

// ProjectMessage converts a message document, joining the author against
// members and falling back to an id-only author.
func ProjectMessage(doc docstore.Document, members []models.User) (models.Message, error) {
	return projectMessage(doc.ID, doc.Fields, members)
}

func projectEmbeddedMessage(raw any, roomID string, members []models.User) (models.Message, error) {
	fields, ok := docstore.Map(raw)
	if !ok {
		return models.Message{}, malformedField(kindMessage, roomID, "lastMessages", "entry is not a mapping")
	}
	id, _ := fields["id"].(string)
	return projectMessage(id, fields, members)
}

func projectMessage(id string, fields docstore.Fields, members []models.User) (models.Message, error) {
	if id == "" {
		return models.Message{}, missingField(kindMessage, "", "id")
	}

	msgType, err := messageType(id, fields)
	if err != nil {
		return models.Message{}, err
	}

	authorID := stringField(fields, "authorId")
	author := models.UserStub(authorID)
	for _, m := range members {
		if m.ID == authorID {
			author = m
			break
		}
	}

	payload := make(map[string]any, len(fields))
	for k, v := range fields.Clone() {
		if _, reserved := reservedMessageFields[k]; reserved {
			continue
		}
		payload[k] = v
	}

	return models.Message{
		ID:        id,
		Type:      msgType,
		Author:    author,
		CreatedAt: millisField(fields, "createdAt"),
		UpdatedAt: millisField(fields, "updatedAt"),
		Payload:   payload,
	}, nil
}

// messageType reads the variant tag. Drafts written without a tag are text
// when they carry text and custom otherwise.
func messageType(id string, fields docstore.Fields) (models.MessageType, error) {
	raw, ok := fields["type"]
	if !ok || raw == nil {
		if _, isText := fields["text"].(string); isText {
			return models.MessageTypeText, nil
		}
		return models.MessageTypeCustom, nil
	}
	s, _ := raw.(string)
	t := models.MessageType(s)
	if !t.Valid() {
		return "", malformedField(kindMessage, id, "type", "is not a known message type")
	}
	return t, nil
}

// projectRoomBase converts the stored room fields without joining members.
// type and userIds are required.
func projectRoomBase(doc docstore.Document) (models.Room, error) {
	f := doc.Fields

	rawType, ok := f["type"]
	if !ok || rawType == nil {
		return models.Room{}, missingField(kindRoom, doc.ID, "type")
	}
	s, _ := rawType.(string)
	roomType := models.RoomType(s)
	if !roomType.Valid() {
		return models.Room{}, malformedField(kindRoom, doc.ID, "type", "is not a known room type")
	}

	rawIDs, ok := f["userIds"]
	if !ok || rawIDs == nil {
		return models.Room{}, missingField(kindRoom, doc.ID, "userIds")
	}
	userIDs, ok := docstore.Strings(rawIDs)
	if !ok {
		return models.Room{}, malformedField(kindRoom, doc.ID, "userIds", "is not a list of ids")
	}

	room := models.Room{
		ID:             doc.ID,
		Type:           roomType,
		Name:           stringField(f, "name"),
		ImageURL:       stringField(f, "imageUrl"),
		UserIDs:        userIDs,
		Metadata:       mapField(f, "metadata"),
		UnseenMessages: countsField(f, "unseen"),
		UserRoles:      rolesField(f, "userRoles"),
		CreatedAt:      millisField(f, "createdAt"),
		UpdatedAt:      millisField(f, "updatedAt"),
	}
	if blocked, ok := docstore.Strings(f["blockedUsers"]); ok {
		room.BlockedUsers = blocked
	} else if blocked, ok := docstore.Strings(f["blockUsers"]); ok {
		room.BlockedUsers = blocked
	}
	return room, nil
}

func stringField(f docstore.Fields, key string) string {
	s, _ := f[key].(string)
	return s
}

func millisField(f docstore.Fields, key string) *int64 {
	ms, ok := docstore.Millis(f[key])
	if !ok {
		return nil
	}
	return &ms
}

func mapField(f docstore.Fields, key string) map[string]any {
	m, ok := docstore.Map(f[key])
	if !ok {
		return nil
	}
	return map[string]any(docstore.Fields(m).Clone())
}

func countsField(f docstore.Fields, key string) map[string]int {
	m, ok := docstore.Map(f[key])
	if !ok {
		return nil
	}
	out := make(map[string]int, len(m))
	for id, v := range m {
		if n, ok := docstore.Int(v); ok {
			out[id] = n
		}
	}
	return out
}

func rolesField(f docstore.Fields, key string) map[string]models.Role {
	m, ok := docstore.Map(f[key])
	if !ok {
		return nil
	}
	out := make(map[string]models.Role, len(m))
	for id, v := range m {
		role := models.Role(stringOf(v))
		if !role.Valid() {
			role = models.RoleUser
		}
		out[id] = role
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
