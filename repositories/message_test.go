package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Store_And_Get_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	sent := []DiskMessage{
		{Sender: "alice", SenderID: 1, Receiver: "bob", Content: "hi", At: at},
		{Sender: "bob", SenderID: 2, Receiver: "alice", Content: "hello", At: at.Add(time.Minute)},
		{Sender: "alice", SenderID: 1, Receiver: "bob", Content: "bye", At: at.Add(2 * time.Minute)},
	}
	for _, message := range sent {
		stored, err := repository.StoreMessage(message)
		req.NoError(err)
		req.NotEmpty(stored.ID)
	}

	fetched, err := repository.GetConversation("alice", "bob")
	req.NoError(err)
	req.Equal([]string{"hi", "hello", "bye"},
		lo.Map(fetched, func(m DiskMessage, _ int) string { return m.Content }))
}

func Test_Get_Conversation_Is_Symmetric(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repository.StoreMessage(DiskMessage{
		Sender: "alice", Receiver: "bob", Content: "hi", At: time.Now().UTC(),
	})
	req.NoError(err)

	// Both directions of the pair key map to the same history.
	fromAlice, err := repository.GetConversation("alice", "bob")
	req.NoError(err)
	fromBob, err := repository.GetConversation("bob", "alice")
	req.NoError(err)
	req.Equal(fromAlice, fromBob)
	req.Len(fromAlice, 1)
}

func Test_Get_Conversation_Isolated_Per_Pair(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	_, err := repository.StoreMessage(DiskMessage{Sender: "alice", Receiver: "bob", Content: "for bob", At: at})
	req.NoError(err)
	_, err = repository.StoreMessage(DiskMessage{Sender: "alice", Receiver: "clara", Content: "for clara", At: at})
	req.NoError(err)

	fetched, err := repository.GetConversation("alice", "clara")
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("for clara", fetched[0].Content)

	empty, err := repository.GetConversation("bob", "clara")
	req.NoError(err)
	req.Empty(empty)
}
