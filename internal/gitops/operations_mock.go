package gitops

import "sync"

// MockOperations is a test double for Operations. Zero value is usable;
// unset functions fall back to benign defaults. Calls records the invoked
// operations in order so tests can assert pipeline stage ordering.
type MockOperations struct {
	mu    sync.Mutex
	Calls []string

	CloneFunc           func(url, clonePath, branch string) error
	CurrentBranchFunc   func(clonePath string) (string, error)
	FetchFunc           func(clonePath, remote string) error
	CheckoutAndPullFunc func(clonePath, branch string) error
	LsFilesFunc         func(clonePath, branch string) ([]string, error)
	HeadCommitFunc      func(clonePath string) (string, error)
}

var _ Operations = (*MockOperations)(nil)

func (m *MockOperations) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// CallLog returns a copy of the recorded call names.
func (m *MockOperations) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	copy(out, m.Calls)
	return out
}

func (m *MockOperations) Clone(url, clonePath, branch string) error {
	m.record("clone")
	if m.CloneFunc != nil {
		return m.CloneFunc(url, clonePath, branch)
	}
	return nil
}

func (m *MockOperations) CurrentBranch(clonePath string) (string, error) {
	m.record("current_branch")
	if m.CurrentBranchFunc != nil {
		return m.CurrentBranchFunc(clonePath)
	}
	return "main", nil
}

func (m *MockOperations) Fetch(clonePath, remote string) error {
	m.record("fetch")
	if m.FetchFunc != nil {
		return m.FetchFunc(clonePath, remote)
	}
	return nil
}

func (m *MockOperations) CheckoutAndPull(clonePath, branch string) error {
	m.record("checkout_pull")
	if m.CheckoutAndPullFunc != nil {
		return m.CheckoutAndPullFunc(clonePath, branch)
	}
	return nil
}

func (m *MockOperations) LsFiles(clonePath, branch string) ([]string, error) {
	m.record("ls_files")
	if m.LsFilesFunc != nil {
		return m.LsFilesFunc(clonePath, branch)
	}
	return nil, nil
}

func (m *MockOperations) HeadCommit(clonePath string) (string, error) {
	m.record("head_commit")
	if m.HeadCommitFunc != nil {
		return m.HeadCommitFunc(clonePath)
	}
	return "0000000000000000000000000000000000000000", nil
}
