// Package worker implements the mining loop for the blockchain. The worker
// composes with the state: it drives the state's mining API and the state
// signals it when a peer block preempts the work.
package worker

import (
	"sync"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/state"
)

// miningInterval represents how often a new candidate block is attempted.
const miningInterval = 10 * time.Second

// =============================================================================

// Worker manages the POW workflow for the blockchain.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	ticker       *time.Ticker
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan chan struct{}
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, evHandler state.EventHandler) {
	w := Worker{
		state:        st,
		ticker:       time.NewTicker(miningInterval),
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan chan struct{}, 1),
		evHandler:    evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.tickerOperations,
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set of
	// operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	for range g {
		<-hasStarted
	}
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: signal cancel mining")
	done := w.SignalCancelMining()
	done()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining signals the G executing the runMiningOperation
// function to stop immediately. The G will not complete its state changes
// until the returned done function is called.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")

	return func() { close(wait) }
}

// =============================================================================

// tickerOperations drives the periodic work: signaling a fresh mining
// attempt and sweeping stale transactions from the mempool.
func (w *Worker) tickerOperations() {
	w.evHandler("worker: tickerOperations: G started")
	defer w.evHandler("worker: tickerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if w.isShutdown() {
				continue
			}

			if dropped := w.state.CleanupMempool(); dropped > 0 {
				w.evHandler("worker: tickerOperations: dropped %d stale transactions", dropped)
			}

			w.SignalStartMining()

		case <-w.shut:
			w.evHandler("worker: tickerOperations: received shut signal")
			return
		}
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
