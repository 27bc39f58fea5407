package mapping

// LearnState is the learn state machine position
type LearnState int

const (
	Idle LearnState = iota
	AwaitingInput
)

func (s LearnState) String() string {
	if s == AwaitingInput {
		return "awaiting-input"
	}
	return "idle"
}

// Learner binds the first controller message received after Begin to the
// awaiting control. Only one control awaits input at a time.
type Learner struct {
	state  LearnState
	target string
}

// Begin arms learn for name, replacing any control already waiting
func (l *Learner) Begin(name string) {
	l.state = AwaitingInput
	l.target = name
}

func (l *Learner) Cancel() {
	l.state = Idle
	l.target = ""
}

func (l *Learner) State() LearnState { return l.state }

// Target returns the control awaiting input
func (l *Learner) Target() (string, bool) {
	return l.target, l.state == AwaitingInput
}

// Offer completes learn with in, binding it in t. ok is false when idle.
func (l *Learner) Offer(in Input, t *Table) (Binding, bool) {
	if l.state != AwaitingInput {
		return Binding{}, false
	}
	b := Binding{Address: in.Address, Control: l.target}
	t.Bind(b.Address, b.Control)
	t.Receive(in)
	l.Cancel()
	return b, true
}
