package errcode

// Code is a stable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
// Registration and arming paths return bare Codes so they stay usable on MCU
// builds where fmt is too heavy.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"

	// Callback pool
	SlotOutOfRange Code = "slot_out_of_range"
	SlotTooSmall   Code = "slot_too_small"
	SlotInUse      Code = "slot_in_use"
	NotCallable    Code = "not_callable"
	MixedLayout    Code = "mixed_layout"

	// Timer driver
	InvalidChannel Code = "invalid_channel"
	InvalidPeriod  Code = "invalid_period"
	ChannelArmed   Code = "channel_armed"

	// Configuration
	UnknownDevice Code = "unknown_device"

	Error Code = "error" // generic fallback
)

// E keeps a Code together with context and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, code) match an *E carrying that code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New attaches an operation name and detail to a code.
func New(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap attaches an operation name and cause to a code.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return Of(u.Unwrap())
	}
	return Error
}
