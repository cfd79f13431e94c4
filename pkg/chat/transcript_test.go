package chat_test

import (
	"testing"

	"concierge/pkg/chat"
	"concierge/pkg/protocol"
)

func TestTranscript_AppendOnlyOrder(t *testing.T) {
	t.Parallel()

	tr := chat.NewTranscript()
	tracker := chat.NewTracker(tr, nil)

	_ = tracker.RecordOutgoing("m1", "what's due today?")
	tr.AppendSystem("Searching...")
	tr.AppendTaskBatch("1 task(s)", []protocol.Task{{ID: "t1", Heading: "File taxes"}})

	entries := tr.Entries()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Message.Sender != chat.SenderUser {
		t.Error("entry 0 should be the user message")
	}
	if m := entries[1].Message; m.Sender != chat.SenderSystem || m.Status != chat.StatusNone || m.Status.Badge() != "" {
		t.Errorf("entry 1 = %+v, want status-less system message", m)
	}
	if b := entries[2].Batch; b == nil || b.Header != "1 task(s)" || len(b.Tasks) != 1 {
		t.Errorf("entry 2 = %+v", entries[2])
	}
}

func TestTranscript_EntriesAreSnapshots(t *testing.T) {
	t.Parallel()

	tr := chat.NewTranscript()
	tracker := chat.NewTracker(tr, nil)
	_ = tracker.RecordOutgoing("m1", "hi")

	snap := tr.Entries()
	tracker.UpdateStatus("m1", protocol.StatusRead)

	if snap[0].Message.Status != chat.StatusSent {
		t.Error("snapshot changed after a later status update")
	}
	snap[0].Message.Text = "mutated"
	if tr.Entries()[0].Message.Text != "hi" {
		t.Error("mutating a snapshot leaked into the transcript")
	}
}

func TestTranscript_TaskBatchCopiesTasks(t *testing.T) {
	t.Parallel()

	tr := chat.NewTranscript()
	tasks := []protocol.Task{{ID: "t1", Tags: []string{"home"}}}
	tr.AppendTaskBatch("", tasks)
	tasks[0].Tags[0] = "work"

	if got := tr.Entries()[0].Batch.Tasks[0].Tags[0]; got != "home" {
		t.Errorf("batch tag = %q, want home", got)
	}
}

func TestTranscript_TypingAndChangeNotifications(t *testing.T) {
	t.Parallel()

	tr := chat.NewTranscript()
	changes := 0
	tr.OnChange(func() { changes++ })

	tr.SetTyping(true)
	tr.SetTyping(true)
	if !tr.Typing() {
		t.Error("typing should be shown")
	}
	tr.SetTyping(false)
	tr.AppendSystem("done")

	if changes != 3 {
		t.Errorf("changes = %d, want 3 (redundant SetTyping is silent)", changes)
	}
}
