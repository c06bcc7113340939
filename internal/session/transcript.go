package session

import "time"

// Speaker identifies who produced a transcript message.
type Speaker string

const (
	SpeakerStudent Speaker = "student"
	SpeakerTutor   Speaker = "tutor"
)

// Message is one chat entry. Tutoring text from stuck/check/complete/reveal
// responses is copied here for display; it is never stored server-side.
type Message struct {
	Speaker Speaker
	Text    string
	Time    time.Time
}

// Transcript is the append-only session chat log, rendered chronologically.
type Transcript struct {
	msgs []Message
}

// Append adds a message to the end of the log.
func (t *Transcript) Append(sp Speaker, text string) {
	t.msgs = append(t.msgs, Message{Speaker: sp, Text: text, Time: time.Now()})
}

// Messages returns a copy of the log in insertion order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	return len(t.msgs)
}
