package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/jhoicas/Costeo-api/internal/domain"
	"github.com/jhoicas/Costeo-api/internal/infrastructure/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Exclusivo(t *testing.T) {
	k := lock.NewKeyedLock()

	release, err := k.Acquire(context.Background(), "o1:widget")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "o1:widget")
	assert.ErrorIs(t, err, domain.ErrBusy, "la misma clave tomada debe expirar con ErrBusy")

	release()
	release2, err := k.Acquire(context.Background(), "o1:widget")
	require.NoError(t, err, "tras liberar la clave vuelve a estar disponible")
	release2()
}

func TestAcquire_ClavesIndependientes(t *testing.T) {
	k := lock.NewKeyedLock()

	r1, err := k.Acquire(context.Background(), "o1:widget")
	require.NoError(t, err)
	defer r1()

	r2, err := k.Acquire(context.Background(), "o1:gadget")
	require.NoError(t, err, "claves distintas no deben bloquearse entre sí")
	r2()
}

// TestRelease_Idempotente: liberar dos veces no debe liberar de más (la
// segunda llamada es un no-op, no un Release extra del semáforo).
func TestRelease_Idempotente(t *testing.T) {
	k := lock.NewKeyedLock()

	release, err := k.Acquire(context.Background(), "o1:widget")
	require.NoError(t, err)
	release()
	release()

	r2, err := k.Acquire(context.Background(), "o1:widget")
	require.NoError(t, err)
	defer r2()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "o1:widget")
	assert.ErrorIs(t, err, domain.ErrBusy, "el doble release no debe dejar la clave doblemente libre")
}

func TestAcquire_EsperaALaLiberacion(t *testing.T) {
	k := lock.NewKeyedLock()

	release, err := k.Acquire(context.Background(), "o1:widget")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := k.Acquire(context.Background(), "o1:widget")
		assert.NoError(t, err)
		if err == nil {
			r()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("el segundo Acquire debió completarse tras el release")
	}
}

func TestAcquire_ContextoCancelado(t *testing.T) {
	k := lock.NewKeyedLock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := k.Acquire(context.Background(), "o1:widget")
	require.NoError(t, err)
	defer r()

	_, err = k.Acquire(ctx, "o1:widget")
	assert.ErrorIs(t, err, domain.ErrBusy)
}
