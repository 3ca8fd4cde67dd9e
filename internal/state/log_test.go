package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/user/deckhand/internal/types"
)

func TestAppendAndTail(t *testing.T) {
	log := NewLog(t.TempDir())
	key := types.SessionKey("slack:dm:U1")

	for i := 0; i < 5; i++ {
		err := log.Append(&Record{
			At:      time.Now(),
			EventID: types.EventID(fmt.Sprintf("e%d", i)),
			Key:     key,
			Action:  "prompted",
			Text:    fmt.Sprintf("message %d", i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	records, err := log.Tail(key, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].EventID != "e2" || records[2].EventID != "e4" {
		t.Errorf("wrong tail window: %v .. %v", records[0].EventID, records[2].EventID)
	}
}

func TestTailMissingConversation(t *testing.T) {
	log := NewLog(t.TempDir())

	records, err := log.Tail("slack:dm:nobody", 10)
	if err != nil {
		t.Fatal(err)
	}
	if records != nil {
		t.Errorf("expected nil, got %v", records)
	}
}

func TestKeys(t *testing.T) {
	log := NewLog(t.TempDir())

	keys, err := log.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys, got %v", keys)
	}

	log.Append(&Record{Key: "slack:dm:U2", Action: "ignored"})
	log.Append(&Record{Key: "slack:dm:U1", Action: "dispatched"})

	keys, err = log.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "slack:dm:U1" || keys[1] != "slack:dm:U2" {
		t.Errorf("keys = %v", keys)
	}
}
