// internal/engine/pong.go
package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/models"
)

// Field dimensions and paddle tuning. The playfield is a fixed 160x90 box;
// clients scale it to their viewport.
const (
	fieldWidth   = 160.0
	fieldHeight  = 90.0
	paddleHeight = 18.0
	paddleSpeed  = 60.0 // units per second
	ballSpeed    = 70.0
)

// Pong is the default physics engine: two paddles, one ball, first to the
// win threshold. It pushes a state frame to every bound connection after
// each advance; spectators receive frames but never feed input.
type Pong struct {
	mu sync.Mutex

	lobbyID    uuid.UUID
	p1Conn     *models.Connection
	p2Conn     *models.Connection
	spectators []*models.Connection

	ballX, ballY float64
	velX, velY   float64
	paddle1Y     float64
	paddle2Y     float64
	move1, move2 float64 // -1 up, 0 hold, +1 down

	score1, score2 int
}

// New builds a Pong engine bound to the two player connections. The
// signature matches game.EngineFactory.
func New(lobbyID uuid.UUID, p1, p2 *models.Connection, spectators []*models.Connection) *Pong {
	p := &Pong{
		lobbyID:    lobbyID,
		p1Conn:     p1,
		p2Conn:     p2,
		spectators: spectators,
		paddle1Y:   fieldHeight / 2,
		paddle2Y:   fieldHeight / 2,
	}
	p.resetBall(1)
	return p
}

// resetBall recenters the ball, serving toward the given horizontal
// direction.
func (p *Pong) resetBall(dir float64) {
	p.ballX = fieldWidth / 2
	p.ballY = fieldHeight / 2
	p.velX = ballSpeed * dir
	p.velY = ballSpeed / 2
}

// ApplyInput registers a paddle move for one role. Unknown moves are
// dropped.
func (p *Pong) ApplyInput(role models.PlayerRole, move string) {
	var dir float64
	switch move {
	case "up":
		dir = -1
	case "down":
		dir = 1
	case "stop":
		dir = 0
	default:
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if role == models.RolePlayer1 {
		p.move1 = dir
	} else {
		p.move2 = dir
	}
}

// Advance steps the simulation by the elapsed wall-clock seconds and pushes
// a frame to every bound connection.
func (p *Pong) Advance(deltaSeconds float64) {
	p.mu.Lock()

	p.paddle1Y = clamp(p.paddle1Y+p.move1*paddleSpeed*deltaSeconds, paddleHeight/2, fieldHeight-paddleHeight/2)
	p.paddle2Y = clamp(p.paddle2Y+p.move2*paddleSpeed*deltaSeconds, paddleHeight/2, fieldHeight-paddleHeight/2)

	p.ballX += p.velX * deltaSeconds
	p.ballY += p.velY * deltaSeconds

	if p.ballY <= 0 {
		p.ballY = -p.ballY
		p.velY = -p.velY
	} else if p.ballY >= fieldHeight {
		p.ballY = 2*fieldHeight - p.ballY
		p.velY = -p.velY
	}

	switch {
	case p.ballX <= 0:
		if diff := p.ballY - p.paddle1Y; diff >= -paddleHeight/2 && diff <= paddleHeight/2 {
			p.ballX = -p.ballX
			p.velX = -p.velX
		} else {
			p.score2++
			p.resetBall(1)
		}
	case p.ballX >= fieldWidth:
		if diff := p.ballY - p.paddle2Y; diff >= -paddleHeight/2 && diff <= paddleHeight/2 {
			p.ballX = 2*fieldWidth - p.ballX
			p.velX = -p.velX
		} else {
			p.score1++
			p.resetBall(-1)
		}
	}

	frame := events.GameState(events.GameStateData{
		LobbyID:      p.lobbyID,
		BallX:        p.ballX,
		BallY:        p.ballY,
		Paddle1Y:     p.paddle1Y,
		Paddle2Y:     p.paddle2Y,
		Player1Score: p.score1,
		Player2Score: p.score2,
	})
	conns := make([]*models.Connection, 0, 2+len(p.spectators))
	if p.p1Conn != nil {
		conns = append(conns, p.p1Conn)
	}
	if p.p2Conn != nil {
		conns = append(conns, p.p2Conn)
	}
	conns = append(conns, p.spectators...)
	p.mu.Unlock()

	for _, c := range conns {
		c.Write(frame)
	}
}

// Score reads the cumulative score for one role.
func (p *Pong) Score(role models.PlayerRole) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if role == models.RolePlayer1 {
		return p.score1
	}
	return p.score2
}

// UpdateSpectators replaces the spectator connection set.
func (p *Pong) UpdateSpectators(conns []*models.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spectators = conns
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
