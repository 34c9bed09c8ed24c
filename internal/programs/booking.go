package programs

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Book atomically reserves a seat. Inside one transaction it verifies the
// program exists and is available, enforces the capacity limit, and rejects
// a second booking for the same email. Unlimited-capacity programs
// (maxParticipants == 0) do not track a participant count. Firestore retries
// the transaction on write conflicts; an abort leaves no partial state.
func (r *Repo) Book(ctx context.Context, programID, email, displayName string) error {
	e := NormalizeEmail(email)
	if e == "" {
		return ErrInvalidEmail
	}

	pRef := r.programDoc(programID)
	bRef := pRef.Collection(colBookings).Doc(e)

	return r.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		pSnap, err := tx.Get(pRef)
		if status.Code(err) == codes.NotFound {
			return ErrProgramNotFound
		}
		if err != nil {
			return fmt.Errorf("read program: %w", err)
		}

		p, err := decodeProgram(pSnap)
		if err != nil {
			return fmt.Errorf("decode program: %w", err)
		}

		alreadyBooked := true
		if _, err := tx.Get(bRef); err != nil {
			if status.Code(err) != codes.NotFound {
				return fmt.Errorf("read booking: %w", err)
			}
			alreadyBooked = false
		}

		next, err := nextParticipantsOnBook(p, alreadyBooked)
		if err != nil {
			return err
		}

		if err := tx.Create(bRef, map[string]any{
			"email":       e,
			"displayName": displayName,
			"createdAt":   firestore.ServerTimestamp,
		}); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		return tx.Update(pRef, []firestore.Update{
			{Path: "currentParticipants", Value: next},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
}

// Cancel releases a seat. Missing program or missing booking is a silent
// no-op, so cancellation is idempotent.
func (r *Repo) Cancel(ctx context.Context, programID, email string) error {
	e := NormalizeEmail(email)
	if e == "" {
		return nil
	}

	pRef := r.programDoc(programID)
	bRef := pRef.Collection(colBookings).Doc(e)

	return r.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		pSnap, err := tx.Get(pRef)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read program: %w", err)
		}

		if _, err := tx.Get(bRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return fmt.Errorf("read booking: %w", err)
		}

		p, err := decodeProgram(pSnap)
		if err != nil {
			return fmt.Errorf("decode program: %w", err)
		}

		if err := tx.Delete(bRef); err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}

		return tx.Update(pRef, []firestore.Update{
			{Path: "currentParticipants", Value: nextParticipantsOnCancel(p)},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
}

// ListBookings returns the bookings subcollection for a program.
func (r *Repo) ListBookings(ctx context.Context, programID string) ([]Booking, error) {
	iter := r.programDoc(programID).Collection(colBookings).Documents(ctx)
	defer iter.Stop()

	out := make([]Booking, 0, 8)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}

		var b Booking
		if err := snap.DataTo(&b); err != nil {
			return nil, fmt.Errorf("decode booking %s: %w", snap.Ref.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// nextParticipantsOnBook decides whether a booking may proceed and what the
// participant count becomes. It is the whole capacity invariant:
// currentParticipants never exceeds maxParticipants when a limit is set.
func nextParticipantsOnBook(p Program, alreadyBooked bool) (int, error) {
	if !p.Available {
		return 0, ErrProgramUnavailable
	}
	if p.MaxParticipants > 0 && p.CurrentParticipants >= p.MaxParticipants {
		return 0, ErrProgramFull
	}
	if alreadyBooked {
		return 0, ErrAlreadyBooked
	}

	if p.MaxParticipants > 0 {
		return p.CurrentParticipants + 1, nil
	}
	return p.CurrentParticipants, nil
}

// nextParticipantsOnCancel decrements floored at zero, and only when a
// capacity limit is tracked.
func nextParticipantsOnCancel(p Program) int {
	if p.MaxParticipants > 0 && p.CurrentParticipants > 0 {
		return p.CurrentParticipants - 1
	}
	if p.MaxParticipants > 0 {
		return 0
	}
	return p.CurrentParticipants
}
