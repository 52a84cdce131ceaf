// Package session holds per-user conversational state: two independent
// message histories and the fingerprint of the currently-ingested corpus.
// Sessions are plain values passed by pointer, never process-wide globals,
// so multiple users never share state.
package session

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"docsense/internal/domain"
)

// Mode selects which history a conversation turn belongs to. Chat and
// document conversations are kept in entirely separate storage and are
// never merged or cross-read.
type Mode int

const (
	ModeChat Mode = iota
	ModeDocument
)

func (m Mode) String() string {
	if m == ModeDocument {
		return "document"
	}
	return "chat"
}

// History is an append-only, insertion-ordered message log.
type History struct {
	messages []domain.Message
}

// Append records a completed turn. Callers append only after a response
// has fully finished (or failed), never mid-stream.
func (h *History) Append(role domain.Role, content string) {
	h.messages = append(h.messages, domain.Message{Role: role, Content: content})
}

// Messages returns a copy; the backing slice is never shared.
func (h *History) Messages() []domain.Message {
	out := make([]domain.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int { return len(h.messages) }

func (h *History) Clear() { h.messages = nil }

// Session is the state for one user session.
type Session struct {
	chat     History
	document History

	fingerprint   string
	corpusSummary string
}

func New() *Session { return &Session{} }

// History returns the log for the given mode.
func (s *Session) History(mode Mode) *History {
	if mode == ModeDocument {
		return &s.document
	}
	return &s.chat
}

// Fingerprint is the comparison key of the last ingested document set.
func (s *Session) Fingerprint() string { return s.fingerprint }

func (s *Session) SetFingerprint(fp string) { s.fingerprint = fp }

// CorpusSummary is a short extract of the ingested corpus, kept for the
// retrieval-fallback prompt path.
func (s *Session) CorpusSummary() string { return s.corpusSummary }

func (s *Session) SetCorpusSummary(summary string) { s.corpusSummary = summary }

// Reset clears all conversational state and the ingestion bookkeeping.
func (s *Session) Reset() {
	s.chat.Clear()
	s.document.Clear()
	s.fingerprint = ""
	s.corpusSummary = ""
}

// FileInfo identifies one uploaded file for change detection.
type FileInfo struct {
	Name string
	Size int64
}

// Fingerprint derives the corpus change-detection key from file names and
// sizes. Equal fingerprints mean ingestion can be skipped; a different
// fingerprint means the vector index is cleared and rebuilt wholesale.
func Fingerprint(files []FileInfo) string {
	var payload string
	for _, f := range files {
		payload += fmt.Sprintf("%s:%d;", f.Name, f.Size)
	}
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
