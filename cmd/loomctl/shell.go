package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"loom-maintenance-backend/internal/client"
	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/maintenance"
	"loom-maintenance-backend/internal/model"
)

var errQuit = errors.New("quit")

type shell struct {
	mgr *client.Manager
	mu  sync.Mutex
	out io.Writer
}

func newShell(mgr *client.Manager, out io.Writer) *shell {
	return &shell{mgr: mgr, out: out}
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// parseArgs splits a line on spaces; double quotes group words.
func parseArgs(line string) []string {
	var (
		args []string
		cur  strings.Builder
		quot bool
	)
	for _, r := range strings.TrimSpace(line) {
		switch {
		case r == '"':
			quot = !quot
		case r == ' ' && !quot:
			if cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args
}

func (s *shell) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help":
		s.help()
		return nil
	case "quit", "exit":
		return errQuit
	case "login":
		return s.login(ctx, rest)
	case "logout":
		s.mgr.Logout()
		s.printf("logged out\n")
		return nil
	case "state":
		return s.state()
	case "sync":
		s.mgr.Tick(ctx)
		return s.state()
	case "machines":
		return s.machines()
	case "report":
		return s.report(rest)
	case "hours":
		return s.hours(ctx, rest)
	case "assign":
		return s.assign(ctx, rest)
	case "complete":
		return s.complete(ctx, rest)
	case "parts":
		return s.parts(rest)
	case "use":
		return s.use(ctx, rest)
	case "notifications":
		return s.notifications(rest)
	case "read":
		if len(rest) != 1 {
			return usage("read <notification-id>")
		}
		return s.mgr.MarkRead(ctx, rest[0])
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
}

func usage(u string) error {
	return fmt.Errorf("usage: %s", u)
}

var commandHelp = [][2]string{
	{"login <user> <password>", "start a session"},
	{"logout", "end the session"},
	{"state", "show connection state and queued local changes"},
	{"sync", "run one sync step now"},
	{"machines", "list machines with their maintenance status"},
	{"report <machine>", "show component intervals of a machine"},
	{"hours <machine> <hours>", "record new operating hours"},
	{"assign <machine> <template|->", "assign or remove a maintenance template"},
	{"complete <machine> <component>... [part=qty]...", "record finished maintenance"},
	{"parts [low]", "list spare parts"},
	{"use <part> <qty>", "take parts out of stock"},
	{"notifications [all]", "list unread (or all) notifications"},
	{"read <notification>", "mark a notification read"},
	{"quit", "leave the shell"},
}

func (s *shell) help() {
	s.mu.Lock()
	defer s.mu.Unlock()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, h := range commandHelp {
		fmt.Fprintf(tw, "  %s\t%s\n", h[0], h[1])
	}
	tw.Flush()
}

func (s *shell) table(header string, rows func(w io.Writer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	tw.Flush()
}

func (s *shell) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("login <user> <password>")
	}
	u, err := s.mgr.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	s.printf("logged in as %s (%s)\n", u.Name, u.Role)
	return nil
}

func (s *shell) state() error {
	d := s.mgr.Document()
	who := "nobody"
	if u, ok := s.mgr.User(); ok {
		who = u.Username
	}
	s.printf("state: %s, pending: %d, last modified: %s, user: %s\n",
		s.mgr.State(), len(s.mgr.Pending()), d.LastModified.Format("2006-01-02 15:04:05"), who)
	if err := s.mgr.PushError(); err != nil {
		s.printf("last push rejected: %v\n", err)
	}
	return nil
}

func (s *shell) machines() error {
	d := s.mgr.Document()
	ms := append([]model.Machine(nil), d.Machines...)
	sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
	s.table("ID\tNAME\tTYPE\tHOURS\tSTATUS\tNEXT DUE", func(w io.Writer) {
		for i := range ms {
			r := maintenance.EvaluateIn(d, &ms[i])
			next := "-"
			if r.NextDueHours != nil {
				next = strconv.FormatInt(*r.NextDueHours, 10) + " h"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", ms[i].ID, ms[i].Name, ms[i].Type, ms[i].OperatingHours, r.Status, next)
		}
	})
	return nil
}

func (s *shell) report(args []string) error {
	if len(args) != 1 {
		return usage("report <machine>")
	}
	d := s.mgr.Document()
	m := d.Machine(args[0])
	if m == nil {
		return fmt.Errorf("%w: machine %q", fleet.ErrNotFound, args[0])
	}
	r := maintenance.EvaluateIn(d, m)
	s.printf("%s (%s) at %d h: %s\n", m.Name, m.Type, m.OperatingHours, r.Status)
	s.table("COMPONENT\tNAME\tINTERVAL\tSINCE\tREMAINING\tSTATUS", func(w io.Writer) {
		for _, c := range r.Components {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", c.ComponentID, c.Name, c.IntervalHours, c.HoursSinceService, c.RemainingHours, c.Status)
		}
	})
	return nil
}

func (s *shell) hours(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("hours <machine> <hours>")
	}
	h, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid hours %q", args[1])
	}
	m, err := s.mgr.UpdateMachine(ctx, args[0], model.MachineUpdate{OperatingHours: model.Some(h)})
	if err != nil {
		return err
	}
	s.printf("%s now at %d h\n", m.Name, m.OperatingHours)
	return nil
}

func (s *shell) assign(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("assign <machine> <template|->")
	}
	tmpl := args[1]
	if tmpl == "-" {
		tmpl = ""
	}
	m, err := s.mgr.AssignTemplate(ctx, args[0], tmpl)
	if err != nil {
		return err
	}
	s.printf("%s uses template %q with %d components\n", m.Name, m.TemplateID(), len(m.ComponentStates))
	return nil
}

func (s *shell) complete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("complete <machine> <component>... [part=qty]...")
	}
	req := model.CompletionRequest{MachineID: args[0], Technician: "loomctl"}
	if u, ok := s.mgr.User(); ok {
		req.Technician = u.Name
	}
	for _, a := range args[1:] {
		part, qty, ok := strings.Cut(a, "=")
		if !ok {
			req.Components = append(req.Components, a)
			continue
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			return fmt.Errorf("invalid quantity in %q", a)
		}
		req.Parts = append(req.Parts, model.PartUsage{PartID: part, Quantity: n})
	}
	out, err := s.mgr.CompleteMaintenance(ctx, req)
	if err != nil {
		return err
	}
	s.printf("recorded %s for %s\n", out.Record.ID, out.Machine.Name)
	for _, n := range out.Notifications {
		s.printf("  ! %s\n", n.Message)
	}
	return nil
}

func (s *shell) parts(args []string) error {
	d := s.mgr.Document()
	list := d.Parts
	if len(args) > 0 && args[0] == "low" {
		list = fleet.LowStock(d)
	}
	s.table("ID\tNAME\tNUMBER\tSTOCK\tMIN", func(w io.Writer) {
		for _, p := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", p.ID, p.Name, p.PartNumber, p.Stock, p.MinStock)
		}
	})
	return nil
}

func (s *shell) use(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("use <part> <qty>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[1])
	}
	p, notif, err := s.mgr.UsePart(ctx, args[0], n)
	if err != nil {
		return err
	}
	s.printf("%s: %d left\n", p.Name, p.Stock)
	if notif != nil {
		s.printf("  ! %s\n", notif.Message)
	}
	return nil
}

func (s *shell) notifications(args []string) error {
	d := s.mgr.Document()
	list := fleet.Unread(d)
	if len(args) > 0 && args[0] == "all" {
		list = d.Notifications
	}
	s.table("ID\tTIME\tURGENT\tMESSAGE", func(w io.Writer) {
		for _, n := range list {
			urgent := ""
			if n.Urgent {
				urgent = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Timestamp.Format("2006-01-02 15:04"), urgent, n.Message)
		}
	})
	return nil
}
