package main

import (
	"context"
	"fmt"

	"github.com/uma-arai/sbcntr-hostel/internal/auth"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
)

// deleteCommand は ID を1つ受け取って削除するコマンドを作ります
func deleteCommand(name string, del func(ctx context.Context, id string) error, a *app) command {
	return command{
		usage: fmt.Sprintf("<%s-id>", name),
		roles: adminRoles,
		run: func(ctx context.Context, args []string) error {
			id, err := parseWithID(a.newFlags(name+" delete"), args)
			if err != nil {
				return err
			}
			if err := del(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s %s\n", name, id)
			return nil
		},
	}
}

// statusFilter は -status フラグを持つ一覧コマンドの絞り込み条件を作ります
func (a *app) statusFilter(name string, args []string) (model.ListFilter, error) {
	fs := a.newFlags(name + " list")
	status := fs.String("status", "", "filter by status")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	filter := model.ListFilter{}
	if *status != "" {
		filter["status"] = *status
	}
	return filter, nil
}

func (a *app) staffCommands() map[string]command {
	return map[string]command{
		"list": {
			usage: "[-status active|on_leave|inactive]",
			roles: adminRoles,
			run: func(ctx context.Context, args []string) error {
				filter, err := a.statusFilter("staff", args)
				if err != nil {
					return err
				}
				staff, err := a.panels.Staff.List(ctx, filter)
				if err != nil {
					return err
				}
				w := a.table()
				fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPOSITION\tSHIFT\tSTATUS")
				for _, s := range staff {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						s.ID, s.Name, s.Email, s.Position, orDash(s.Shift), orDash(s.Status))
				}
				return w.Flush()
			},
		},
		"delete": deleteCommand("staff", a.panels.Staff.Delete, a),
	}
}

func (a *app) paymentCommands() map[string]command {
	return map[string]command{
		"list": {
			usage: "[-status pending|paid|overdue|refunded]",
			roles: adminRoles,
			run: func(ctx context.Context, args []string) error {
				filter, err := a.statusFilter("payments", args)
				if err != nil {
					return err
				}
				payments, err := a.panels.Payments.List(ctx, filter)
				if err != nil {
					return err
				}
				w := a.table()
				fmt.Fprintln(w, "ID\tSTUDENT\tAMOUNT\tSTATUS\tDUE")
				for _, p := range payments {
					fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
						p.ID, p.StudentID, p.Amount, p.Status, formatTime(p.DueDate))
				}
				return w.Flush()
			},
		},
		"delete": deleteCommand("payment", a.panels.Payments.Delete, a),
	}
}

func (a *app) complaintCommands() map[string]command {
	return map[string]command{
		"list": {
			usage: "[-status open|in_progress|resolved|closed]",
			roles: staffRoles,
			run: func(ctx context.Context, args []string) error {
				filter, err := a.statusFilter("complaints", args)
				if err != nil {
					return err
				}
				complaints, err := a.panels.Complaints.List(ctx, filter)
				if err != nil {
					return err
				}
				w := a.table()
				fmt.Fprintln(w, "ID\tSTUDENT\tCATEGORY\tPRIORITY\tSTATUS\tCREATED")
				for _, c := range complaints {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						c.ID, c.StudentID, c.Category, orDash(c.Priority), c.Status, formatTime(c.CreatedAt))
				}
				return w.Flush()
			},
		},
		"status": {
			usage: "<complaint-id> -status open|in_progress|resolved|closed [-resolution TEXT]",
			roles: staffRoles,
			run: func(ctx context.Context, args []string) error {
				fs := a.newFlags("complaints status")
				status := fs.String("status", "", "new status")
				resolution := fs.String("resolution", "", "resolution, required for resolved and closed")
				id, err := parseWithID(fs, args)
				if err != nil {
					return err
				}
				c, err := a.panels.UpdateComplaintStatus(ctx, id, model.ComplaintStatus(*status), *resolution)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "complaint %s %s\n", c.ID, c.Status)
				return nil
			},
		},
		"delete": deleteCommand("complaint", a.panels.Complaints.Delete, a),
	}
}

func (a *app) leaveCommands() map[string]command {
	decide := func(name string, fn func(ctx context.Context, id, note string) (*model.LeaveRequest, error)) command {
		flagName := "note"
		if name == "reject" {
			flagName = "reason"
		}
		return command{
			usage: fmt.Sprintf("<leave-id> -%s TEXT", flagName),
			roles: adminRoles,
			run: func(ctx context.Context, args []string) error {
				fs := a.newFlags("leave " + name)
				note := fs.String(flagName, "", "decision note")
				id, err := parseWithID(fs, args)
				if err != nil {
					return err
				}
				leave, err := fn(ctx, id, *note)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "leave request %s %s\n", leave.ID, leave.Status)
				return nil
			},
		}
	}

	return map[string]command{
		"list": {
			usage: "[-status pending|approved|rejected]",
			roles: anyRole,
			run: func(ctx context.Context, args []string) error {
				filter, err := a.statusFilter("leave", args)
				if err != nil {
					return err
				}
				if a.session.Role == auth.RoleStudent {
					filter["student_id"] = a.session.UserID
				}
				leaves, err := a.panels.Leave.List(ctx, filter)
				if err != nil {
					return err
				}
				w := a.table()
				fmt.Fprintln(w, "ID\tSTUDENT\tFROM\tTO\tSTATUS\tREASON")
				for _, l := range leaves {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						l.ID, l.StudentID, l.FromDate.Format("2006-01-02"), l.ToDate.Format("2006-01-02"), l.Status, l.Reason)
				}
				return w.Flush()
			},
		},
		"approve": decide("approve", a.panels.ApproveLeave),
		"reject":  decide("reject", a.panels.RejectLeave),
	}
}
