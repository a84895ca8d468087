package listcache

// TotalCount tracks how many events exist on the backend. It is overwritten
// by every list fetch and nudged by one after a local create or delete.
//
// The zero value is ready to use. It is not synchronized; the owner
// serializes access.
type TotalCount struct {
	n int
}

func NewTotalCount() *TotalCount { return &TotalCount{} }

// Set stores an authoritative count from the backend.
func (t *TotalCount) Set(n int) {
	if n < 0 {
		n = 0
	}
	t.n = n
}

func (t *TotalCount) Increase() { t.n++ }

// Decrease never goes below zero.
func (t *TotalCount) Decrease() {
	if t.n > 0 {
		t.n--
	}
}

func (t *TotalCount) Value() int { return t.n }
