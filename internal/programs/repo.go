package programs

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	colPrograms = "programs"
	colRatings  = "ratings"
	colBookings = "bookings"

	// listLimit bounds one-shot program listings, matching the public API
	// page size.
	listLimit = 100
)

// Repo owns all Firestore access for programs and their ratings/bookings
// subcollections.
type Repo struct {
	fs *firestore.Client
}

func NewRepo(fs *firestore.Client) *Repo {
	return &Repo{fs: fs}
}

func (r *Repo) programs() *firestore.CollectionRef {
	return r.fs.Collection(colPrograms)
}

func (r *Repo) programDoc(id string) *firestore.DocumentRef {
	return r.programs().Doc(id)
}

// Create inserts a normalized program document and returns it with the
// generated id. Timestamps are server-assigned.
func (r *Repo) Create(ctx context.Context, in ProgramInput) (*Program, error) {
	p := NewProgram(in)
	if p.Name == "" {
		return nil, fmt.Errorf("program name is required")
	}
	doc := r.programs().NewDoc()
	if _, err := doc.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	p.ID = doc.ID
	return &p, nil
}

// Get returns a single program or ErrProgramNotFound.
func (r *Repo) Get(ctx context.Context, id string) (*Program, error) {
	snap, err := r.programDoc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrProgramNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}

	p, err := decodeProgram(snap)
	if err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &p, nil
}

// decodeProgram reads a snapshot into a Program. Documents written before the
// availability flag existed carry no "available" field; absence means
// available, so only an explicit false blocks bookings.
func decodeProgram(snap *firestore.DocumentSnapshot) (Program, error) {
	var p Program
	if err := snap.DataTo(&p); err != nil {
		return Program{}, err
	}
	p.ID = snap.Ref.ID
	if _, err := snap.DataAt("available"); err != nil {
		p.Available = true
	}
	return p, nil
}

// List returns one page of programs ordered alphabetically by name.
func (r *Repo) List(ctx context.Context) ([]Program, error) {
	return r.collect(r.programs().OrderBy("name", firestore.Asc).Limit(listLimit).Documents(ctx))
}

// ListAll scans the whole collection with no page cap. Stats and the
// reconciliation sweep use this; the paged listings stay on List.
func (r *Repo) ListAll(ctx context.Context) ([]Program, error) {
	return r.collect(r.programs().Documents(ctx))
}

func (r *Repo) collect(iter *firestore.DocumentIterator) ([]Program, error) {
	defer iter.Stop()

	out := make([]Program, 0, 16)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list programs: %w", err)
		}

		p, err := decodeProgram(snap)
		if err != nil {
			return nil, fmt.Errorf("decode program %s: %w", snap.Ref.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Update applies a whitelisted partial patch and server-stamps updatedAt.
// Derived fields (counters, aggregates, timestamps) are rejected with
// ErrFieldNotAllowed.
func (r *Repo) Update(ctx context.Context, id string, patch map[string]any) error {
	updates, err := patchUpdates(patch)
	if err != nil {
		return err
	}

	updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})

	_, err = r.programDoc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrProgramNotFound
	}
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// Delete removes the program document. Firestore does not cascade, so
// rating and booking subcollection documents become orphaned.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := r.programDoc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return nil
}

// patchFields is the set of client-writable program fields, with the Go type
// each Firestore write should use. JSON numbers arrive as float64; integer
// fields are coerced so reads back into Program do not mix int and double.
var patchFields = map[string]string{
	"name":               "string",
	"location":           "string",
	"address":            "string",
	"schedule":           "string",
	"difficulty":         "string",
	"instructor":         "string",
	"instructorBio":      "string",
	"description":        "string",
	"maxParticipants":    "int",
	"available":          "bool",
	"cost":               "float",
	"equipment":          "string",
	"accessibility":      "string",
	"ageRange":           "string",
	"healthRequirements": "string",
	"lat":                "float",
	"lng":                "float",
}

func patchUpdates(patch map[string]any) ([]firestore.Update, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPatch)
	}

	updates := make([]firestore.Update, 0, len(patch))
	for field, raw := range patch {
		kind, ok := patchFields[field]
		if !ok {
			return nil, fmt.Errorf("%q: %w", field, ErrFieldNotAllowed)
		}

		value, err := coercePatchValue(field, kind, raw)
		if err != nil {
			return nil, err
		}
		updates = append(updates, firestore.Update{Path: field, Value: value})
	}
	return updates, nil
}

func coercePatchValue(field, kind string, raw any) (any, error) {
	if raw == nil {
		// Only the nullable fields accept null.
		if field == "cost" || field == "lat" || field == "lng" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: field %q may not be null", ErrInvalidPatch, field)
	}

	switch kind {
	case "string":
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: field %q must be a string", ErrInvalidPatch, field)
		}
		return s, nil
	case "bool":
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: field %q must be a boolean", ErrInvalidPatch, field)
		}
		return b, nil
	case "int":
		f, ok := raw.(float64)
		if !ok || f != float64(int64(f)) || f < 0 {
			return nil, fmt.Errorf("%w: field %q must be a non-negative integer", ErrInvalidPatch, field)
		}
		return int64(f), nil
	case "float":
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: field %q must be a number", ErrInvalidPatch, field)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: field %q has no patch rule", ErrInvalidPatch, field)
	}
}
