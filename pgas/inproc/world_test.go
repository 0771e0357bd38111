package inproc

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NirjharDeb/treedone/pgas"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
	_, err = New(-3)
	assert.Error(t, err)

	w, err := New(1)
	require.NoError(t, err)
	assert.Equal(t, 1, w.NPes())
}

func TestPutWaitGet(t *testing.T) {
	w, err := New(2)
	require.NoError(t, err)

	status, err := w.Run(func(pe pgas.PE) error {
		seg, err := pe.AllocInts(4)
		if err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}

		switch pe.Me() {
		case 0:
			// Wait for PE 1's remote write to land in slot 2 of my copy.
			if err := pe.WaitUntil(seg, 2, pgas.CmpEQ, -1); err != nil {
				return err
			}
			// Other slots stay zero.
			v, err := pe.Get(seg, 0, 0)
			if err != nil {
				return err
			}
			if v != 0 {
				return errors.New("untouched slot changed")
			}
		case 1:
			if err := pe.Put(seg, 2, -1, 0); err != nil {
				return err
			}
			if err := pe.Quiet(); err != nil {
				return err
			}
			// Remote read-back of what we just wrote.
			v, err := pe.Get(seg, 2, 0)
			if err != nil {
				return err
			}
			if v != -1 {
				return errors.New("remote get missed the put")
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestFloatSegments(t *testing.T) {
	w, err := New(2)
	require.NoError(t, err)

	_, err = w.Run(func(pe pgas.PE) error {
		seg, err := pe.AllocFloats(1)
		if err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}
		if err := pe.PutFloat(seg, 0, 1.5+float64(pe.Me()), pe.Me()); err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}
		for p := 0; p < pe.NPes(); p++ {
			v, err := pe.GetFloat(seg, 0, p)
			if err != nil {
				return err
			}
			if v != 1.5+float64(p) {
				return errors.New("float slot mismatch")
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// Fetch-increment must hand out each prior value exactly once.
func TestFetchIncSerialization(t *testing.T) {
	const npes = 16
	w, err := New(npes)
	require.NoError(t, err)

	var mu sync.Mutex
	priors := make(map[int64]int)

	_, err = w.Run(func(pe pgas.PE) error {
		seg, err := pe.AllocInts(1)
		if err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}
		prior, err := pe.FetchInc(seg, 0, 0)
		if err != nil {
			return err
		}
		mu.Lock()
		priors[prior]++
		mu.Unlock()

		if err := pe.Barrier(); err != nil {
			return err
		}
		if pe.Me() == 0 {
			v, err := pe.Get(seg, 0, 0)
			if err != nil {
				return err
			}
			if v != npes {
				return errors.New("counter did not reach npes")
			}
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, priors, npes)
	for i := int64(0); i < npes; i++ {
		assert.Equal(t, 1, priors[i], "prior %d", i)
	}
}

func TestCompareSwap(t *testing.T) {
	w, err := New(2)
	require.NoError(t, err)

	_, err = w.Run(func(pe pgas.PE) error {
		seg, err := pe.AllocInts(1)
		if err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}

		if pe.Me() == 1 {
			prior, err := pe.CompareSwap(seg, 0, 0, 7, 0)
			if err != nil {
				return err
			}
			if prior != 0 {
				return errors.New("first cas should see zero")
			}
			prior, err = pe.CompareSwap(seg, 0, 0, 9, 0)
			if err != nil {
				return err
			}
			if prior != 7 {
				return errors.New("second cas should fail with prior 7")
			}
		}
		if err := pe.Barrier(); err != nil {
			return err
		}
		v, err := pe.Get(seg, 0, 0)
		if err != nil {
			return err
		}
		if v != 7 {
			return errors.New("failed cas must not overwrite")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBarrierOrdersWrites(t *testing.T) {
	const npes = 8
	w, err := New(npes)
	require.NoError(t, err)

	_, err = w.Run(func(pe pgas.PE) error {
		seg, err := pe.AllocInts(npes)
		if err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}
		// Everyone writes its slot at PE 0, then the barrier publishes all.
		if err := pe.Put(seg, pe.Me(), int64(pe.Me())+1, 0); err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}
		if pe.Me() == 0 {
			for i := 0; i < npes; i++ {
				v, err := pe.Get(seg, i, 0)
				if err != nil {
					return err
				}
				if v != int64(i)+1 {
					return errors.New("write not visible after barrier")
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// GlobalExit must unblock waiters on every PE and surface its status.
func TestGlobalExit(t *testing.T) {
	const npes = 6
	w, err := New(npes)
	require.NoError(t, err)

	status, err := w.Run(func(pe pgas.PE) error {
		seg, err := pe.AllocInts(1)
		if err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}
		if pe.Me() == 3 {
			pe.GlobalExit(5)
			return nil
		}
		// Nobody ever writes this slot; only the exit can release us.
		err = pe.WaitUntil(seg, 0, pgas.CmpEQ, -1)
		if !errors.Is(err, pgas.ErrJobExit) {
			return errors.New("blocked wait must fail with job exit")
		}
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 5, status)
}

func TestGlobalExit_FirstStatusWins(t *testing.T) {
	const npes = 4
	w, err := New(npes)
	require.NoError(t, err)

	status, err := w.Run(func(pe pgas.PE) error {
		if err := pe.Barrier(); err != nil {
			return err
		}
		if pe.Me() == 0 {
			pe.GlobalExit(2)
		}
		// Latecomers must not overwrite the latched status.
		pe.GlobalExit(9)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, []int{2, 9}, status, "one of the concurrent statuses is latched")

	// Deterministic case: only one caller.
	w2, err := New(2)
	require.NoError(t, err)
	status, err = w2.Run(func(pe pgas.PE) error {
		if pe.Me() == 0 {
			pe.GlobalExit(3)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, status)
}

func TestAllocMismatch(t *testing.T) {
	w, err := New(2)
	require.NoError(t, err)

	_, err = w.Run(func(pe pgas.PE) error {
		// PEs diverge on the collective allocation size.
		_, err := pe.AllocInts(1 + pe.Me())
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, pgas.ErrAllocMismatch)
}

func TestAddressValidation(t *testing.T) {
	w, err := New(2)
	require.NoError(t, err)

	_, err = w.Run(func(pe pgas.PE) error {
		seg, err := pe.AllocInts(2)
		if err != nil {
			return err
		}
		if err := pe.Barrier(); err != nil {
			return err
		}
		if err := pe.Put(seg, 5, 1, 0); !errors.Is(err, pgas.ErrBadIndex) {
			return errors.New("out-of-range index must be rejected")
		}
		if err := pe.Put(seg, 0, 1, 9); !errors.Is(err, pgas.ErrBadPE) {
			return errors.New("out-of-range pe must be rejected")
		}
		return nil
	})
	require.NoError(t, err)
}

// A PE failing outside the exit protocol aborts the world so its siblings
// do not block forever, and the original error reaches the caller.
func TestRunError_AbortsWorld(t *testing.T) {
	w, err := New(3)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = w.Run(func(pe pgas.PE) error {
		seg, aerr := pe.AllocInts(1)
		if aerr != nil {
			return aerr
		}
		if aerr := pe.Barrier(); aerr != nil {
			return aerr
		}
		if pe.Me() == 0 {
			return boom
		}
		werr := pe.WaitUntil(seg, 0, pgas.CmpEQ, -1)
		if !errors.Is(werr, pgas.ErrJobExit) {
			return errors.New("siblings must be released on abort")
		}
		return werr
	})
	require.ErrorIs(t, err, boom)
}
