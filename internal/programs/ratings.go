package programs

import (
	"context"
	"fmt"
	"math"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RatingInput is the upsert payload. Stars arrives as a JSON number and must
// be integer-valued in [1,5].
type RatingInput struct {
	Email   string  `json:"email"`
	Stars   float64 `json:"stars"`
	Comment string  `json:"comment"`
}

// UpsertRating merge-writes one user's rating (keyed by normalized email,
// both timestamps re-stamped) and then recomputes the program's aggregates
// with a full rescan of the subcollection. The recompute is intentionally
// outside the write transaction; the nightly reconciliation job repairs any
// drift from concurrent raters.
func (r *Repo) UpsertRating(ctx context.Context, programID string, in RatingInput) error {
	e := NormalizeEmail(in.Email)
	if e == "" {
		return ErrInvalidEmail
	}
	stars, err := validateStars(in.Stars)
	if err != nil {
		return err
	}

	// Fail with a clean not-found before writing into a subcollection of a
	// program that does not exist.
	if _, err := r.Get(ctx, programID); err != nil {
		return err
	}

	rRef := r.programDoc(programID).Collection(colRatings).Doc(e)
	_, err = rRef.Set(ctx, map[string]any{
		"email":     e,
		"stars":     stars,
		"comment":   in.Comment,
		"createdAt": firestore.ServerTimestamp,
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}

	return r.RecomputeAggregates(ctx, programID)
}

// DeleteRating removes one user's rating and recomputes aggregates. Missing
// rating or missing program is a silent no-op.
func (r *Repo) DeleteRating(ctx context.Context, programID, email string) error {
	e := NormalizeEmail(email)
	if e == "" {
		return nil
	}

	if _, err := r.Get(ctx, programID); err != nil {
		if err == ErrProgramNotFound {
			return nil
		}
		return err
	}

	rRef := r.programDoc(programID).Collection(colRatings).Doc(e)
	if _, err := rRef.Delete(ctx); err != nil {
		return fmt.Errorf("delete rating: %w", err)
	}

	return r.RecomputeAggregates(ctx, programID)
}

// ListRatings returns all ratings for a program.
func (r *Repo) ListRatings(ctx context.Context, programID string) ([]Rating, error) {
	iter := r.programDoc(programID).Collection(colRatings).Documents(ctx)
	defer iter.Stop()

	out := make([]Rating, 0, 8)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list ratings: %w", err)
		}

		var rt Rating
		if err := snap.DataTo(&rt); err != nil {
			return nil, fmt.Errorf("decode rating %s: %w", snap.Ref.ID, err)
		}
		out = append(out, rt)
	}
	return out, nil
}

// GetUserRating returns one user's rating or ErrRatingNotFound.
func (r *Repo) GetUserRating(ctx context.Context, programID, email string) (*Rating, error) {
	e := NormalizeEmail(email)
	if e == "" {
		return nil, ErrInvalidEmail
	}

	snap, err := r.programDoc(programID).Collection(colRatings).Doc(e).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrRatingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}

	var rt Rating
	if err := snap.DataTo(&rt); err != nil {
		return nil, fmt.Errorf("decode rating: %w", err)
	}
	return &rt, nil
}

// ListAllRatingsFlat returns every rating across all programs via a
// collection-group query, with the owning program id attached.
func (r *Repo) ListAllRatingsFlat(ctx context.Context) ([]Rating, error) {
	iter := r.fs.CollectionGroup(colRatings).Documents(ctx)
	defer iter.Stop()

	out := make([]Rating, 0, 32)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list all ratings: %w", err)
		}

		var rt Rating
		if err := snap.DataTo(&rt); err != nil {
			return nil, fmt.Errorf("decode rating %s: %w", snap.Ref.ID, err)
		}
		rt.ProgramID = snap.Ref.Parent.Parent.ID
		out = append(out, rt)
	}
	return out, nil
}

// RecomputeAggregates rescans a program's ratings and persists ratingAvg and
// ratingCount onto the program document. Full rescan, not incremental: the
// subcollections are small and a rescan cannot drift.
func (r *Repo) RecomputeAggregates(ctx context.Context, programID string) error {
	ratings, err := r.ListRatings(ctx, programID)
	if err != nil {
		return err
	}

	avg, count := computeRatingAggregate(ratings)

	_, err = r.programDoc(programID).Update(ctx, []firestore.Update{
		{Path: "ratingAvg", Value: avg},
		{Path: "ratingCount", Value: count},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if status.Code(err) == codes.NotFound {
		return ErrProgramNotFound
	}
	if err != nil {
		return fmt.Errorf("persist aggregates: %w", err)
	}
	return nil
}

// ReconcileAllAggregates recomputes aggregates for every program in the
// collection, not just one listing page. A failure on one program is logged
// by the caller and does not stop the sweep.
func (r *Repo) ReconcileAllAggregates(ctx context.Context) (reconciled int, firstErr error) {
	list, err := r.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	for _, p := range list {
		if err := r.RecomputeAggregates(ctx, p.ID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("program %s: %w", p.ID, err)
			}
			continue
		}
		reconciled++
	}
	return reconciled, firstErr
}

func computeRatingAggregate(ratings []Rating) (avg float64, count int) {
	count = len(ratings)
	if count == 0 {
		return 0, 0
	}

	sum := 0
	for _, rt := range ratings {
		sum += rt.Stars
	}
	return float64(sum) / float64(count), count
}

func validateStars(stars float64) (int, error) {
	if stars != math.Trunc(stars) {
		return 0, ErrInvalidStars
	}
	n := int(stars)
	if n < 1 || n > 5 {
		return 0, ErrInvalidStars
	}
	return n, nil
}
