package booking

import (
	"context"
	"errors"

	"studiopass/internal/api"
	"studiopass/internal/pass"
	"studiopass/internal/schedule"
)

type WorkflowState string

const (
	StateSelectingType    WorkflowState = "selecting_type"
	StateSelectingSlot    WorkflowState = "selecting_slot"
	StateEnteringDetails  WorkflowState = "entering_details"
	StateConfirmed        WorkflowState = "confirmed"

	// Portal variant for authenticated pass holders.
	StatePickingPassAndSlot WorkflowState = "picking_pass_and_slot"
	StateConfirming         WorkflowState = "confirming"
)

var (
	ErrWrongState       = errors.New("operation not valid in current workflow state")
	ErrPassNotEligible  = errors.New("selected pass is not eligible")
	ErrPassNotSelected  = errors.New("a pass must be selected")
	ErrMissingDetails   = errors.New("name and email are required")
	ErrSlotNotSelected  = errors.New("a date and time slot must be selected")
)

// Advice is what the workflow returns when a guard holds the flow in
// place: a remediation hint for the client, not an error.
type Advice struct {
	Message     string `json:"message,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
}

type availabilityChecker interface {
	SlotAvailability(ctx context.Context, date, slot string) (*schedule.SlotAvailability, error)
}

type passLister interface {
	EligiblePasses(ctx context.Context, userID int) ([]pass.Pass, error)
}

// Workflow drives the multi-step booking flow. Guards that fail for
// remediable reasons (not logged in, no pass) keep the state where it
// is and return an Advice; only broken inputs return errors. Nothing in
// the workflow retries automatically.
type Workflow struct {
	state        WorkflowState
	availability availabilityChecker
	ledger       passLister

	category Category
	userID   *int
	eligible []pass.Pass
	passID   int

	date string
	slot string

	name  string
	email string
	phone string
}

func NewWorkflow(availability availabilityChecker, ledger passLister) *Workflow {
	return &Workflow{
		state:        StateSelectingType,
		availability: availability,
		ledger:       ledger,
	}
}

// NewPortalWorkflow starts the authenticated variant: the client is
// known, so the flow begins at combined pass-and-slot selection.
func NewPortalWorkflow(availability availabilityChecker, ledger passLister, userID int, name, email string) *Workflow {
	return &Workflow{
		state:        StatePickingPassAndSlot,
		availability: availability,
		ledger:       ledger,
		userID:       &userID,
		name:         name,
		email:        email,
	}
}

func (w *Workflow) State() WorkflowState {
	return w.state
}

// EligiblePasses exposes the passes loaded for selection. When more
// than one is present the client must choose explicitly.
func (w *Workflow) EligiblePasses() []pass.Pass {
	return w.eligible
}

func (w *Workflow) SelectType(ctx context.Context, categoryName string, userID *int) (*Advice, error) {
	if w.state != StateSelectingType {
		return nil, ErrWrongState
	}

	category, ok := FindCategory(categoryName)
	if !ok {
		return nil, ErrUnknownCategory
	}

	if !category.NeedsCalendar {
		// Resolved externally; no booking is ever created in-app.
		return &Advice{ExternalURL: category.ExternalURL}, nil
	}

	if category.ConsumesPass {
		if userID == nil {
			return &Advice{Message: "log in to book with your pass"}, nil
		}

		eligible, err := w.ledger.EligiblePasses(ctx, *userID)
		if err != nil {
			return nil, err
		}
		if len(eligible) == 0 {
			return &Advice{Message: "no active pass with remaining sessions; purchase a pass to continue"}, nil
		}

		w.eligible = eligible
		if len(eligible) == 1 {
			w.passID = eligible[0].ID
		}
	}

	w.category = category
	w.userID = userID
	w.state = StateSelectingSlot
	return nil, nil
}

func (w *Workflow) ChoosePass(passID int) error {
	if w.state != StateSelectingSlot && w.state != StatePickingPassAndSlot {
		return ErrWrongState
	}

	for _, p := range w.eligible {
		if p.ID == passID {
			w.passID = passID
			return nil
		}
	}

	return ErrPassNotEligible
}

// LoadPasses fills the eligible set for the portal variant.
func (w *Workflow) LoadPasses(ctx context.Context) error {
	if w.state != StatePickingPassAndSlot {
		return ErrWrongState
	}
	if w.userID == nil {
		return ErrPassRequired
	}

	eligible, err := w.ledger.EligiblePasses(ctx, *w.userID)
	if err != nil {
		return err
	}

	w.eligible = eligible
	if len(eligible) == 1 {
		w.passID = eligible[0].ID
	}
	return nil
}

func (w *Workflow) SelectSlot(ctx context.Context, date, slot string) error {
	if w.state != StateSelectingSlot && w.state != StatePickingPassAndSlot {
		return ErrWrongState
	}

	availability, err := w.availability.SlotAvailability(ctx, date, slot)
	if err != nil {
		return err
	}
	if availability.IsFull {
		return ErrSlotFull
	}

	w.date = date
	w.slot = slot

	if w.state == StatePickingPassAndSlot {
		if w.category.Name == "" {
			w.category, _ = FindCategory("group_class")
		}
		w.state = StateConfirming
	} else {
		w.state = StateEnteringDetails
	}
	return nil
}

func (w *Workflow) EnterDetails(name, email, phone string) error {
	if w.state != StateEnteringDetails {
		return ErrWrongState
	}
	details := struct {
		Name  string `validate:"required"`
		Email string `validate:"required,email"`
	}{Name: name, Email: email}
	if errs := api.ValidateStruct(details); len(errs) > 0 {
		return ErrMissingDetails
	}

	w.name = name
	w.email = email
	w.phone = phone
	return nil
}

// Confirm executes the saga through the booking service. On failure the
// workflow stays where it is so the client can re-submit or re-select;
// on success it moves to Confirmed.
func (w *Workflow) Confirm(ctx context.Context, svc Service) (*BookResponse, error) {
	if w.state != StateEnteringDetails && w.state != StateConfirming {
		return nil, ErrWrongState
	}
	if w.date == "" || w.slot == "" {
		return nil, ErrSlotNotSelected
	}
	if w.name == "" || w.email == "" {
		return nil, ErrMissingDetails
	}
	if w.category.ConsumesPass && w.passID == 0 {
		return nil, ErrPassNotSelected
	}

	resp, err := svc.Book(ctx, w.userID, BookRequest{
		AppointmentType: w.category.Name,
		Date:            w.date,
		TimeSlot:        w.slot,
		PassID:          w.passID,
		Name:            w.name,
		Email:           w.email,
		Phone:           w.phone,
	})
	if err != nil {
		return nil, err
	}

	w.state = StateConfirmed
	return resp, nil
}

// Restart resets a confirmed flow for a new booking.
func (w *Workflow) Restart() {
	w.state = StateSelectingType
	w.category = Category{}
	w.eligible = nil
	w.passID = 0
	w.date = ""
	w.slot = ""
	w.name = ""
	w.email = ""
	w.phone = ""
}
