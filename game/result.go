package game

// Result is a bazaar's result for one day. A half is declared once its
// panna is set.
type Result struct {
	OpenPanna  string
	ClosePanna string
}

func (r Result) OpenDeclared() bool  { return r.OpenPanna != "" }
func (r Result) CloseDeclared() bool { return r.ClosePanna != "" }

// OpenAnk is empty until the open panna is declared.
func (r Result) OpenAnk() string {
	if !r.OpenDeclared() {
		return ""
	}
	return ankString(r.OpenPanna)
}

func (r Result) CloseAnk() string {
	if !r.CloseDeclared() {
		return ""
	}
	return ankString(r.ClosePanna)
}

// Jodi is the open ank followed by the close ank.
func (r Result) Jodi() string {
	if !r.OpenDeclared() || !r.CloseDeclared() {
		return ""
	}
	return r.OpenAnk() + r.CloseAnk()
}

// PannaFor returns the panna declared for the given session.
func (r Result) PannaFor(s Session) string {
	if s == SessionOpen {
		return r.OpenPanna
	}
	return r.ClosePanna
}

func (r Result) AnkFor(s Session) string {
	if s == SessionOpen {
		return r.OpenAnk()
	}
	return r.CloseAnk()
}

// String renders the board format: 128-10-370, 128-1*-*** or ***-**-***.
func (r Result) String() string {
	openPanna, closePanna := "***", "***"
	openAnk, closeAnk := "*", "*"
	if r.OpenDeclared() {
		openPanna = r.OpenPanna
		openAnk = r.OpenAnk()
	}
	if r.CloseDeclared() {
		closePanna = r.ClosePanna
		closeAnk = r.CloseAnk()
	}
	return openPanna + "-" + openAnk + closeAnk + "-" + closePanna
}
