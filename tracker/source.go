package tracker

import (
	"time"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
)

// ScoreSource records where the displayed category scores came from. The
// only implementations are ServerAuthoritative and LocallyDerived.
type ScoreSource interface {
	Scores() metrics.Scores
	At() time.Time
	kind() sourceKind
}

type sourceKind string

const (
	kindNone   sourceKind = ""
	kindServer sourceKind = "server"
	kindLocal  sourceKind = "local"
)

// ServerAuthoritative scores were computed by the API and replace anything
// derived locally.
type ServerAuthoritative struct {
	Values    metrics.Scores
	FetchedAt time.Time
}

func (s ServerAuthoritative) Scores() metrics.Scores { return s.Values }

func (s ServerAuthoritative) At() time.Time { return s.FetchedAt }

func (ServerAuthoritative) kind() sourceKind { return kindServer }

// LocallyDerived scores were recomputed from the cached completion history.
type LocallyDerived struct {
	Values     metrics.Scores
	ComputedAt time.Time
}

func (s LocallyDerived) Scores() metrics.Scores { return s.Values }

func (s LocallyDerived) At() time.Time { return s.ComputedAt }

func (LocallyDerived) kind() sourceKind { return kindLocal }

// IsServer reports whether src came from the API.
func IsServer(src ScoreSource) bool {
	return src != nil && src.kind() == kindServer
}

// Precedence decides which side wins in Reconcile.
type Precedence int

const (
	// PreferServer takes the server scores whenever the server has computed
	// them, and falls back to a local recompute otherwise.
	PreferServer Precedence = iota
	// LocalOnly ignores server scores entirely.
	LocalOnly
)

func (p Precedence) String() string {
	switch p {
	case PreferServer:
		return "prefer_server"
	case LocalOnly:
		return "local_only"
	}
	return "unknown"
}

// Reconcile picks the scores to display. remote may be nil when the fetch
// failed or there is no account.
func Reconcile(local State, remote *RemoteUser, precedence Precedence, now time.Time) ScoreSource {
	if precedence == PreferServer && remote != nil && remote.Scores != nil {
		return ServerAuthoritative{Values: *remote.Scores, FetchedAt: now}
	}
	return LocallyDerived{
		Values:     metrics.CategoryScores(local.completions(), now),
		ComputedAt: now,
	}
}
