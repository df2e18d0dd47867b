// internal/engine/pong_test.go
package engine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/models"
)

func newConn() *models.Connection {
	return &models.Connection{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		OutChan: make(chan events.Event, 256),
	}
}

func TestPaddleMovementClamped(t *testing.T) {
	p := New(uuid.New(), newConn(), newConn(), nil)

	p.ApplyInput(models.RolePlayer1, "up")
	for i := 0; i < 300; i++ {
		p.Advance(1.0 / 60)
	}
	if p.paddle1Y != paddleHeight/2 {
		t.Errorf("paddle1 not clamped at top edge: %v", p.paddle1Y)
	}

	p.ApplyInput(models.RolePlayer1, "stop")
	before := p.paddle1Y
	p.Advance(1.0 / 60)
	if p.paddle1Y != before {
		t.Errorf("paddle moved after stop: %v -> %v", before, p.paddle1Y)
	}

	p.ApplyInput(models.RolePlayer1, "sideways")
	p.Advance(1.0 / 60)
	if p.paddle1Y != before {
		t.Errorf("unknown move changed paddle: %v", p.paddle1Y)
	}
}

func TestScoreOnMissedBall(t *testing.T) {
	p := New(uuid.New(), newConn(), newConn(), nil)

	// ball heading at the right edge, paddle2 parked far away
	p.ballX = fieldWidth - 1
	p.ballY = fieldHeight / 2
	p.velX = ballSpeed
	p.velY = 0
	p.paddle2Y = paddleHeight / 2

	p.Advance(0.1)
	if got := p.Score(models.RolePlayer1); got != 1 {
		t.Fatalf("expected player1 to score, got %d", got)
	}
	if p.ballX != fieldWidth/2 || p.ballY != fieldHeight/2 {
		t.Errorf("ball not reset after score: %v,%v", p.ballX, p.ballY)
	}
}

func TestBounceOffPaddle(t *testing.T) {
	p := New(uuid.New(), newConn(), newConn(), nil)

	p.ballX = fieldWidth - 1
	p.ballY = fieldHeight / 2
	p.velX = ballSpeed
	p.velY = 0
	p.paddle2Y = fieldHeight / 2

	p.Advance(0.1)
	if got := p.Score(models.RolePlayer1); got != 0 {
		t.Fatalf("covered ball should not score, got %d", got)
	}
	if p.velX >= 0 {
		t.Errorf("ball should have bounced back, velX=%v", p.velX)
	}
}

func TestFramesPushedToConnections(t *testing.T) {
	p1, p2, spec := newConn(), newConn(), newConn()
	p := New(uuid.New(), p1, p2, []*models.Connection{spec})

	p.Advance(1.0 / 60)

	for i, c := range []*models.Connection{p1, p2, spec} {
		select {
		case ev := <-c.OutChan:
			if ev.Namespace != events.NamespaceGame || ev.Action != "state" {
				t.Errorf("conn %d: unexpected event %s/%s", i, ev.Namespace, ev.Action)
			}
		default:
			t.Errorf("conn %d received no frame", i)
		}
	}
}
