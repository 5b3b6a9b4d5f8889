package reconciler

// PostTask is a detached mark-read confirmation. The presentation layer may
// ignore it; tests use it to observe the outcome.
type PostTask struct {
	MessageIDs []string

	done chan struct{}
	err  error
}

func newPostTask(ids []string) *PostTask {
	return &PostTask{MessageIDs: ids, done: make(chan struct{})}
}

// Done is closed once the post has finished
func (t *PostTask) Done() <-chan struct{} {
	return t.done
}

// Err returns the post's error. It is nil until Done is closed.
func (t *PostTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *PostTask) finish(err error) {
	t.err = err
	close(t.done)
}
