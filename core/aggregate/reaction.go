package aggregate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

func ParseReaction(s string) (ReactionType, error) {
	switch t := ReactionType(s); t {
	case ReactionLike, ReactionDislike:
		return t, nil
	}
	return "", fmt.Errorf("%w: reaction type %q", ErrInvalid, s)
}

// Counters are the reaction totals stored on a feedback row.
type Counters struct {
	FeedbackID string `json:"feedbackId" db:"-"`
	Like       int    `json:"like" db:"likes"`
	Dislike    int    `json:"dislike" db:"dislikes"`
}

type rowAction int

const (
	rowKeep rowAction = iota
	rowInsert
	rowFlip
	rowDelete
)

// transition is the effect of one reaction event on the reaction row and
// the feedback counters.
type transition struct {
	row     rowAction
	like    int
	dislike int
}

func (t transition) noop() bool {
	return t.row == rowKeep && t.like == 0 && t.dislike == 0
}

func counterDelta(t ReactionType, n int) (like, dislike int) {
	if t == ReactionLike {
		return n, 0
	}
	return 0, n
}

// upsertTransition maps the current reaction (nil when none) and the
// submitted one to the required change.
func upsertTransition(prev *ReactionType, next ReactionType) transition {
	if prev == nil {
		l, d := counterDelta(next, 1)
		return transition{row: rowInsert, like: l, dislike: d}
	}
	if *prev == next {
		return transition{row: rowKeep}
	}
	ol, od := counterDelta(*prev, -1)
	nl, nd := counterDelta(next, 1)
	return transition{row: rowFlip, like: ol + nl, dislike: od + nd}
}

func removeTransition(prev *ReactionType) transition {
	if prev == nil {
		return transition{row: rowKeep}
	}
	l, d := counterDelta(*prev, -1)
	return transition{row: rowDelete, like: l, dislike: d}
}

// UpsertReaction records userID's reaction to a feedback. Submitting the
// current reaction again changes nothing; submitting the opposite one moves
// the count from one counter to the other.
func (e *Engine) UpsertReaction(ctx context.Context, feedbackID, userID string, typ ReactionType) (Counters, error) {
	if _, err := ParseReaction(string(typ)); err != nil {
		return Counters{FeedbackID: feedbackID}, err
	}

	return e.react(ctx, opUpsertReaction, feedbackID, userID, typ, func(prev *ReactionType) transition {
		return upsertTransition(prev, typ)
	})
}

// RemoveReaction deletes userID's reaction to a feedback, if any, and takes
// it off the matching counter.
func (e *Engine) RemoveReaction(ctx context.Context, feedbackID, userID string) (Counters, error) {
	return e.react(ctx, opRemoveReaction, feedbackID, userID, "", removeTransition)
}

func (e *Engine) react(ctx context.Context, op, feedbackID, userID string, typ ReactionType, next func(*ReactionType) transition) (Counters, error) {
	const lockFeedbackQ = `SELECT likes, dislikes FROM feedbacks
		WHERE feedback_id = $1 AND deleted_at IS NULL
		FOR UPDATE`
	const lockReactionQ = `SELECT type FROM feedback_reactions
		WHERE feedback_id = $1 AND user_id = $2
		FOR UPDATE`

	c := Counters{FeedbackID: feedbackID}
	attrs := []attribute.KeyValue{
		attribute.String("feedback_id", feedbackID),
		attribute.String("user_id", userID),
	}

	err := e.write(ctx, op, attrs, func(ctx context.Context, tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, &c, lockFeedbackQ, feedbackID); err != nil {
			return err
		}

		var prev *ReactionType
		var cur ReactionType
		err := sqlx.GetContext(ctx, tx, &cur, lockReactionQ, feedbackID, userID)
		switch {
		case err == nil:
			prev = &cur
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("selecting reaction: %w", err)
		}

		tr := next(prev)
		if tr.noop() {
			return nil
		}

		if err := applyRow(ctx, tx, tr.row, feedbackID, userID, typ); err != nil {
			return err
		}
		return applyCounters(ctx, tx, &c, tr)
	})
	if err != nil {
		return Counters{FeedbackID: feedbackID}, err
	}

	return c, nil
}

func applyRow(ctx context.Context, tx sqlx.ExtContext, row rowAction, feedbackID, userID string, typ ReactionType) error {
	now := time.Now().UTC()

	var err error
	switch row {
	case rowInsert:
		const q = `INSERT INTO feedback_reactions (feedback_id, user_id, type, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)`
		_, err = tx.ExecContext(ctx, q, feedbackID, userID, typ, now)
	case rowFlip:
		const q = `UPDATE feedback_reactions SET type = $3, updated_at = $4
			WHERE feedback_id = $1 AND user_id = $2`
		_, err = tx.ExecContext(ctx, q, feedbackID, userID, typ, now)
	case rowDelete:
		const q = `DELETE FROM feedback_reactions WHERE feedback_id = $1 AND user_id = $2`
		_, err = tx.ExecContext(ctx, q, feedbackID, userID)
	}
	if err != nil {
		return fmt.Errorf("writing reaction: %w", err)
	}
	return nil
}

// applyCounters shifts the feedback counters. The guard keeps both at or
// above zero; a miss aborts the transaction as an invariant violation.
func applyCounters(ctx context.Context, tx sqlx.ExtContext, c *Counters, tr transition) error {
	const q = `UPDATE feedbacks SET likes = likes + $2, dislikes = dislikes + $3
		WHERE feedback_id = $1 AND likes + $2 >= 0 AND dislikes + $3 >= 0
		RETURNING likes, dislikes`

	err := sqlx.GetContext(ctx, tx, c, q, c.FeedbackID, tr.like, tr.dislike)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: counters like=%d dislike=%d cannot take like%+d dislike%+d",
			ErrInvariant, c.Like, c.Dislike, tr.like, tr.dislike)
	}
	return err
}
