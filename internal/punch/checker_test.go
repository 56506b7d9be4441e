package punch

import (
	"context"
	"errors"
	"testing"

	"github.com/klhsieh/punchd/internal/core/domain"
)

func TestCheckerReadsFullPageState(t *testing.T) {
	sel := DefaultSelectors()
	sess := newFakeSession()
	sess.show(sel.PunchPanel, "Punch")
	sess.show(sel.GPSFrame, "")
	sess.show(sel.DateText, " 2026-08-29 ")
	sess.show(sel.TimeText, "08:55:12")
	sess.attrs[attrKey(sel.LocationInput, "value")] = "HQ lobby"
	sess.show(sel.EnterButton, "")
	sess.hide(sel.ExitButton)

	status, err := newChecker(sess, sel, testLogger()).Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.PageStatus{
		PageLoaded:     true,
		GPSLoaded:      true,
		CurrentDate:    "2026-08-29",
		CurrentTime:    "08:55:12",
		Location:       "HQ lobby",
		EnterAvailable: true,
		ExitAvailable:  false,
	}
	if status != want {
		t.Fatalf("status = %+v, want %+v", status, want)
	}
}

func TestCheckerDisabledButtonIsUnavailable(t *testing.T) {
	sel := DefaultSelectors()
	sess := newFakeSession()
	sess.show(sel.EnterButton, "")
	sess.disable(sel.EnterButton)

	status, err := newChecker(sess, sel, testLogger()).Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.EnterAvailable {
		t.Fatal("a rendered but disabled button must not count as available")
	}
}

func TestCheckerSoftFieldsDegradeQuietly(t *testing.T) {
	sel := DefaultSelectors()
	sess := newFakeSession()
	sess.show(sel.EnterButton, "")
	sess.errs["text"] = errors.New("stale element")
	sess.errs["attribute"] = errors.New("stale element")

	status, err := newChecker(sess, sel, testLogger()).Check(context.Background())
	if err != nil {
		t.Fatalf("soft field failures must not fail the check: %v", err)
	}
	if status.CurrentDate != "" || status.Location != "" {
		t.Fatalf("expected empty soft fields, got %+v", status)
	}
	if !status.EnterAvailable {
		t.Fatal("button availability should survive soft field failures")
	}
}

func TestCheckerFailsWhenNoButtonReadable(t *testing.T) {
	sel := DefaultSelectors()
	sess := newFakeSession()
	sess.errs["enabled"] = errors.New("connection reset")
	sess.show(sel.EnterButton, "")
	sess.show(sel.ExitButton, "")

	_, err := newChecker(sess, sel, testLogger()).Check(context.Background())
	if err == nil {
		t.Fatal("expected an error when neither punch button can be read")
	}
}
