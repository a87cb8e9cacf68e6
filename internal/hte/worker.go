package hte

// worker is a channel's deferred execution context, created only when the
// consumer supplied a secondary callback.
//
// The wake channel has capacity one and is written with a non-blocking
// send, so wakes issued while a previous wake is still pending coalesce
// into a single worker invocation. Delivery of the deferred trigger is
// at-least-once, never exactly-once.
type worker struct {
	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	fn     SecondaryCallback
	data   any
	label  string
	logger Logger
}

// startWorker creates a parked worker and starts its goroutine.
func startWorker(fn SecondaryCallback, data any, label string, logger Logger) *worker {
	w := &worker{
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		fn:     fn,
		data:   data,
		label:  label,
		logger: logger,
	}
	go w.loop()
	return w
}

// wakeup signals the worker to run the secondary callback. It never blocks;
// a wake issued while one is already pending is coalesced.
func (w *worker) wakeup() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// stop shuts the worker down and waits for its goroutine to exit.
// A wake issued concurrently with stop is still honoured: the loop
// re-checks the wake channel one last time before exiting.
func (w *worker) stop() {
	close(w.quit)
	<-w.done
}

func (w *worker) loop() {
	defer close(w.done)

	for {
		select {
		case <-w.wake:
			w.invoke()
		case <-w.quit:
			// Honour a final wake that raced with the stop request.
			select {
			case <-w.wake:
				w.invoke()
			default:
			}
			return
		}
	}
}

func (w *worker) invoke() {
	if err := w.fn(w.data); err != nil {
		w.logger.Error("secondary callback failed", "channel", w.label, "error", err)
	}
}
