package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrNoQuestions       = errors.New("question list is empty")
	ErrAlreadyLoaded     = errors.New("questions already loaded")
	ErrNotActive         = errors.New("wizard is not active")
	ErrEmptyAnswer       = errors.New("answer must not be empty")
	ErrAtFirstQuestion   = errors.New("already at the first question")
	ErrNotReadyToSubmit  = errors.New("not all questions answered")
	ErrAlreadySubmitted  = errors.New("wizard already submitted")
	ErrSubmissionPending = errors.New("submission in flight")
)

// State enumerates the wizard lifecycle.
type State int

const (
	StateIdle State = iota
	StateActive
	StateReadyToSubmit
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateReadyToSubmit:
		return "ready_to_submit"
	case StateSubmitted:
		return "submitted"
	}
	return "unknown"
}

// SubmitFunc receives the complete question-to-answer map exactly once per
// successful submission.
type SubmitFunc func(ctx context.Context, answers map[string]string) error

// Controller walks a patient through an ordered list of follow-up questions
// one at a time. Answers are recorded per question and survive backward
// navigation; forward navigation requires a non-blank answer for the current
// question. Submission is guarded so rapid double activation produces exactly
// one collaborator call.
type Controller struct {
	mu        sync.Mutex
	questions []string
	answers   []string
	cursor    int
	state     State
	inFlight  bool
	submit    SubmitFunc
}

func NewController(submit SubmitFunc) *Controller {
	return &Controller{submit: submit}
}

// LoadQuestions moves the wizard from Idle to Active(0). An empty list keeps
// the wizard Idle; loading twice is an error because the wizard is not
// reusable across sessions.
func (c *Controller) LoadQuestions(questions []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ErrAlreadyLoaded
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	c.questions = make([]string, len(questions))
	copy(c.questions, questions)
	c.answers = make([]string, len(questions))
	c.cursor = 0
	c.state = StateActive
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cursor returns the index of the current question. Cursor == len(questions)
// means every question has been answered.
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Current returns the question and recorded answer at the cursor.
func (c *Controller) Current() (question, answer string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive || c.cursor >= len(c.questions) {
		return "", "", false
	}
	return c.questions[c.cursor], c.answers[c.cursor], true
}

// Answer records the answer for the current question without advancing.
func (c *Controller) Answer(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrSubmissionPending
	}
	if c.state != StateActive {
		return ErrNotActive
	}

	c.answers[c.cursor] = text
	return nil
}

// Next advances to the following question. The current answer must be
// non-blank. Advancing past the last question moves to ReadyToSubmit.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrSubmissionPending
	}
	if c.state != StateActive {
		return ErrNotActive
	}
	if strings.TrimSpace(c.answers[c.cursor]) == "" {
		return ErrEmptyAnswer
	}

	c.cursor++
	if c.cursor == len(c.questions) {
		c.state = StateReadyToSubmit
	}
	return nil
}

// Prev steps back one question. The answer previously recorded there is kept
// and returned by Current; navigation never clears answers.
func (c *Controller) Prev() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrSubmissionPending
	}
	if c.state != StateActive && c.state != StateReadyToSubmit {
		return ErrNotActive
	}
	if c.cursor == 0 {
		return ErrAtFirstQuestion
	}

	c.cursor--
	c.state = StateActive
	return nil
}

// Answers builds the question-to-answer map in its current form.
func (c *Controller) Answers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answersLocked()
}

func (c *Controller) answersLocked() map[string]string {
	out := make(map[string]string, len(c.questions))
	for i, q := range c.questions {
		out[q] = c.answers[i]
	}
	return out
}

// Submit invokes the collaborator with the complete answer map. Calling it
// on the last question with a valid answer performs the final advance first,
// so exactly N next/submit transitions separate Active(0) from
// ReadyToSubmit. A second Submit while the first is still in flight is a
// no-op. On failure the wizard stays in ReadyToSubmit for retry; on success
// it terminates in Submitted.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()

	if c.inFlight {
		c.mu.Unlock()
		return nil
	}

	switch c.state {
	case StateSubmitted:
		c.mu.Unlock()
		return ErrAlreadySubmitted
	case StateIdle:
		c.mu.Unlock()
		return ErrNotActive
	case StateActive:
		if c.cursor != len(c.questions)-1 {
			c.mu.Unlock()
			return ErrNotReadyToSubmit
		}
		if strings.TrimSpace(c.answers[c.cursor]) == "" {
			c.mu.Unlock()
			return ErrEmptyAnswer
		}
		c.cursor++
		c.state = StateReadyToSubmit
	}

	c.inFlight = true
	answers := c.answersLocked()
	c.mu.Unlock()

	// The collaborator call happens outside the lock; inFlight keeps the
	// wizard suspended meanwhile.
	err := c.submit(ctx, answers)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	if err != nil {
		return err
	}

	c.state = StateSubmitted
	return nil
}
