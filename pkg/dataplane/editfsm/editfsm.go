// Package editfsm implements the WRITE sentence/word edit state machine of
// spec.md §4.8: IDLE -> PARSED -> LOCKED -> EDITING -> COMMITTING -> DONE.
// A Session owns the parsed sentence list for one file and one connection;
// the SS Data Handler (pkg/dataplane/data) drives it record by record and
// is responsible for releasing its lock on every exit path.
package editfsm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/dfs/pkg/dataplane/lock"
	"github.com/marmos91/dfs/pkg/dataplane/store"
)

// Sentence is one parsed unit of a file's content: its text (including its
// own trailing delimiter, if any) and whether that delimiter is present.
type Sentence struct {
	Text       string
	Terminated bool
}

func isDelim(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// ParseSentences splits content on spec.md §4.8's sentence boundary rule: a
// single '.', '!', or '?' ends a sentence; a run of two or more collapses
// into ordinary text instead (it does not split anything). Whitespace
// immediately following a boundary is eaten. An empty or sentence-less file
// materialises as a single empty, non-terminated sentence at index 0.
func ParseSentences(content string) []Sentence {
	var sentences []Sentence
	var current strings.Builder

	runes := []rune(content)
	n := len(runes)
	i := 0
	for i < n {
		r := runes[i]
		if isDelim(r) {
			j := i
			for j < n && isDelim(runes[j]) {
				j++
			}
			if j-i == 1 {
				current.WriteRune(r)
				sentences = append(sentences, Sentence{Text: current.String(), Terminated: true})
				current.Reset()
				i = j
				for i < n && isSpace(runes[i]) {
					i++
				}
				continue
			}
			// A run of 2+ delimiters is not a boundary; keep it as text.
			current.WriteString(string(runes[i:j]))
			i = j
			continue
		}
		current.WriteRune(r)
		i++
	}
	if current.Len() > 0 || len(sentences) == 0 {
		// The trailing whitespace of a non-terminated final sentence (a
		// committed file ends in a newline) is not part of its text.
		text := strings.TrimRightFunc(current.String(), isSpace)
		if text != "" || len(sentences) == 0 {
			sentences = append(sentences, Sentence{Text: text, Terminated: false})
		}
	}
	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func wordsOf(text string) []string {
	return strings.Fields(text)
}

// ErrWordOutOfRange is returned by InsertWords when word_index is outside
// [0, current word count]. The session stays LOCKED/EDITING on this error;
// the caller must keep reading further word-update records.
var ErrWordOutOfRange = errors.New("editfsm: word index out of range")

// SentenceOutOfRangeError is returned by SelectSentence when sentence_num
// is invalid, carrying the word_index value spec.md §4.8 requires the
// response to report alongside it.
type SentenceOutOfRangeError struct {
	WordIndex int32
}

func (e *SentenceOutOfRangeError) Error() string {
	return fmt.Sprintf("editfsm: sentence index out of range (word_index=%d)", e.WordIndex)
}

// FileLockedError is returned by SelectSentence when another user already
// holds the requested sentence's lock.
type FileLockedError struct {
	Holder string
}

func (e *FileLockedError) Error() string {
	return "editfsm: sentence locked by " + e.Holder
}

// Session is one WRITE edit session: PARSED on construction, LOCKED/EDITING
// once SelectSentence succeeds, DONE once Commit or Release runs.
type Session struct {
	filename string
	owner    string

	store store.ContentStore
	locks *lock.Table

	sentences []Sentence
	current   int
	locked    bool
}

// Open reads filename's current content, stages a pre-commit backup
// snapshot of it (per spec.md §4.8's "the backup copy was seized earlier
// in this handler before overwrite"), and parses it into sentences. A
// missing file parses as empty content, matching CREATE's "touch file"
// semantics.
func Open(ctx context.Context, st store.ContentStore, locks *lock.Table, filename, owner string) (*Session, error) {
	data, err := st.Read(ctx, filename)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	original := ""
	if err == nil {
		original = string(data)
	}
	if err := st.StageBackup(ctx, filename, []byte(original)); err != nil {
		return nil, err
	}
	return &Session{
		filename:  filename,
		owner:     owner,
		store:     st,
		locks:     locks,
		sentences: ParseSentences(original),
	}, nil
}

// SelectSentence validates sentenceNum against the current sentence list,
// acquires its lock, and returns its current text. It materialises a new
// trailing empty sentence when sentenceNum equals the current count and the
// prior sentence is terminated, per spec.md §4.8's append rule.
func (s *Session) SelectSentence(sentenceNum int32) (text string, err error) {
	count := int32(len(s.sentences))

	switch {
	case sentenceNum < 0:
		return "", &SentenceOutOfRangeError{WordIndex: 0}
	case sentenceNum > count:
		return "", &SentenceOutOfRangeError{WordIndex: count}
	case sentenceNum == count:
		if !s.sentences[count-1].Terminated {
			return "", &SentenceOutOfRangeError{WordIndex: count - 1}
		}
		s.sentences = append(s.sentences, Sentence{})
	}

	ok, holder := s.locks.TryLock(s.filename, int(sentenceNum), s.owner)
	if !ok {
		return "", &FileLockedError{Holder: holder}
	}
	s.current = int(sentenceNum)
	s.locked = true
	return s.sentences[s.current].Text, nil
}

// InsertWords tokenises payload on whitespace and inserts each token, in
// order, starting at wordIndex within the current sentence, shifting prior
// occupants right (this is always an insert, never a replace). If the
// recomposed sentence now contains a delimiter, it is re-split: the first
// piece becomes the current sentence and any remainder is spliced into the
// sentence list directly after the current index.
func (s *Session) InsertWords(wordIndex int32, payload string) (text string, newWordIndex int32, err error) {
	current := s.sentences[s.current].Text
	words := wordsOf(current)
	count := int32(len(words))

	if wordIndex < 0 || wordIndex > count {
		// The returned index carries the current bound so the response can
		// report it to guide the client.
		return "", count, ErrWordOutOfRange
	}

	tokens := wordsOf(payload)
	if len(tokens) == 0 {
		return current, count, nil
	}

	merged := make([]string, 0, len(words)+len(tokens))
	merged = append(merged, words[:wordIndex]...)
	merged = append(merged, tokens...)
	merged = append(merged, words[wordIndex:]...)
	recomposed := strings.Join(merged, " ")

	pieces := ParseSentences(recomposed)
	first := pieces[0]
	s.sentences[s.current] = first

	if len(pieces) > 1 {
		rest := append([]Sentence{}, pieces[1:]...)
		tail := append([]Sentence{}, s.sentences[s.current+1:]...)
		s.sentences = append(s.sentences[:s.current+1], rest...)
		s.sentences = append(s.sentences, tail...)
	}

	return first.Text, int32(len(wordsOf(first.Text))), nil
}

// Content reconstructs the whole file from the current sentence list,
// reinserting a single space where original inter-sentence whitespace was
// eaten during parsing.
func (s *Session) Content() string {
	parts := make([]string, len(s.sentences))
	for i, sent := range s.sentences {
		parts[i] = sent.Text
	}
	return strings.Join(parts, " ")
}

// Commit writes the reconstructed file atomically, promotes the staged
// pre-commit snapshot into the active undo backup (clearing the undo-state
// flag), and returns the full committed content. A non-empty file always
// ends in a newline on disk.
func (s *Session) Commit(ctx context.Context) (string, error) {
	content := s.Content()
	if content != "" {
		content += "\n"
	}
	if err := s.store.WriteAtomic(ctx, s.filename, []byte(content)); err != nil {
		return "", err
	}
	if err := s.store.CommitBackup(ctx, s.filename); err != nil {
		return "", err
	}
	return content, nil
}

// Locked reports whether SelectSentence has succeeded and the session is
// now in the LOCKED/EDITING states, awaiting word-update records.
func (s *Session) Locked() bool {
	return s.locked
}

// Release frees the session's sentence lock, if held. It is safe to call
// on every exit path (commit, error, peer disconnect) and more than once.
func (s *Session) Release() {
	if s.locked {
		s.locks.Unlock(s.filename, s.current, s.owner)
		s.locked = false
	}
}
