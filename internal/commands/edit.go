package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/geo"
	"tasksync/internal/task"
)

func init() {
	Register(&EditCmd{})
}

// optString is a string flag that records whether it was given.
type optString struct {
	set   bool
	value string
}

func (o *optString) String() string { return o.value }

func (o *optString) Set(s string) error {
	o.set = true
	o.value = s
	return nil
}

// EditCmd implements the edit command.
type EditCmd struct {
	text    optString
	due     optString
	lat     optString
	lon     optString
	address optString

	street     optString
	number     optString
	city       optString
	region     optString
	postalCode optString
	country    optString

	clearDue      bool
	clearLocation bool
}

func (c *EditCmd) Name() string       { return "edit" }
func (c *EditCmd) Aliases() []string  { return []string{"update"} }
func (c *EditCmd) Synopsis() string   { return "Change the fields of a task" }
func (c *EditCmd) Usage() string      { return "tasksync edit [common flags] [edit flags] <ref>" }
func (c *EditCmd) NeedsSession() bool { return true }
func (c *EditCmd) NeedsAuth() bool    { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	*c = EditCmd{}
	fs.Var(&c.text, "text", "new task text")
	fs.Var(&c.due, "due", "due date (2006-01-02, 2006-01-02 15:04 or RFC 3339; no offset means UTC)")
	fs.BoolVar(&c.clearDue, "clear-due", false, "remove the due date")
	fs.Var(&c.lat, "lat", "latitude in decimal degrees")
	fs.Var(&c.lon, "lon", "longitude in decimal degrees")
	fs.Var(&c.address, "address", "address text")
	fs.Var(&c.street, "street", "address street")
	fs.Var(&c.number, "number", "address street number")
	fs.Var(&c.city, "city", "address city")
	fs.Var(&c.region, "region", "address region")
	fs.Var(&c.postalCode, "postal-code", "address postal code")
	fs.Var(&c.country, "country", "address country")
	fs.BoolVar(&c.clearLocation, "clear-location", false, "remove coordinates and address")
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return ReportError(errOut, err)
	}
	patch, err := c.patch()
	if err != nil {
		return ReportError(errOut, err)
	}
	if patch.IsEmpty() {
		fmt.Fprintln(errOut, "error: nothing to change (see: tasksync help)")
		return exitcode.UserError
	}
	t, err := ResolveTask(sess.Tasks, ref)
	if err != nil {
		return ReportError(errOut, err)
	}

	ctx, cancel := context.WithTimeout(ctx, sess.Timeout)
	defer cancel()
	if err := sess.Tasks.UpdateTask(ctx, t.ID, patch); err != nil {
		return ReportError(errOut, err)
	}

	printOK(out, cfg.Quiet)
	return exitcode.Success
}

var errConflictingFlags = fmt.Errorf("%w: conflicting flags", task.ErrInvalidPatch)

// patch builds the update described by the flags.
func (c *EditCmd) patch() (task.Patch, error) {
	var p task.Patch

	if c.text.set {
		p.Text = task.Value(c.text.value)
	}

	switch {
	case c.due.set && c.clearDue:
		return p, fmt.Errorf("%w: --due and --clear-due", errConflictingFlags)
	case c.due.set:
		due, err := task.ParseDue(c.due.value)
		if err != nil {
			return p, fmt.Errorf("%w: %w", task.ErrInvalidPatch, err)
		}
		p.DueDate = task.Value(due)
	case c.clearDue:
		p.DueDate = task.Null[time.Time]()
	}

	components := geo.Address{
		Street:       c.street.value,
		StreetNumber: c.number.value,
		City:         c.city.value,
		Region:       c.region.value,
		PostalCode:   c.postalCode.value,
		Country:      c.country.value,
	}
	hasComponents := c.street.set || c.number.set || c.city.set || c.region.set || c.postalCode.set || c.country.set
	hasCoords := c.lat.set || c.lon.set

	if c.clearLocation {
		if hasCoords || c.address.set || hasComponents {
			return p, fmt.Errorf("%w: --clear-location with a location", errConflictingFlags)
		}
		p.LocationCoords = task.Null[task.Coords]()
		p.LocationAddress = task.Null[string]()
		return p, nil
	}

	if hasCoords {
		if !c.lat.set || !c.lon.set {
			return p, fmt.Errorf("%w: --lat and --lon must be given together", geo.ErrLocationUnavailable)
		}
		coords, err := geo.ParseCoords(c.lat.value, c.lon.value)
		if err != nil {
			return p, err
		}
		p.LocationCoords = task.Value(coords)
	}

	if c.address.set && hasComponents {
		return p, fmt.Errorf("%w: --address with address components", errConflictingFlags)
	}
	var address string
	switch {
	case c.address.set:
		address = geo.FormatAddress(c.address.value)
	case hasComponents:
		address = components.Format()
	default:
		return p, nil
	}
	if address == "" {
		p.LocationAddress = task.Null[string]()
	} else {
		p.LocationAddress = task.Value(address)
	}
	return p, nil
}
