package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/service/allocation"
)

func (a *app) requestCommands() map[string]command {
	return map[string]command{
		"list": {
			usage: "[-status pending|approved|rejected|waitlisted]",
			roles: anyRole,
			run:   a.listRequests,
		},
		"create": {
			usage: "-type single|double|triple|dormitory [-floor N] [-room-id ID] [-requirements TEXT]",
			roles: students,
			run:   a.createRequest,
		},
		"plan": {
			usage: "<request-id>",
			roles: adminRoles,
			run:   a.planRequest,
		},
		"approve": {
			usage: "<request-id> [-room ROOM_ID|ROOM_NUMBER] [-notes TEXT]",
			roles: adminRoles,
			run:   a.approveRequest,
		},
		"reject": {
			usage: "<request-id> -reason TEXT",
			roles: adminRoles,
			run:   a.rejectRequest,
		},
	}
}

func (a *app) listRequests(ctx context.Context, args []string) error {
	fs := a.newFlags("requests list")
	status := fs.String("status", "", "filter by status")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := a.allocation.Refresh(ctx); err != nil {
		return err
	}
	requests := a.allocation.Requests(model.RoomRequestStatus(*status))

	w := a.table()
	fmt.Fprintln(w, "ID\tSTUDENT\tTYPE\tSTATUS\tROOM\tCREATED")
	for _, r := range requests {
		student := r.StudentID
		if r.StudentName != "" {
			student = r.StudentName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, student, r.PreferredRoomType, r.Status, orDash(r.AllocatedRoomID), formatTime(r.CreatedAt))
	}
	return w.Flush()
}

func (a *app) createRequest(ctx context.Context, args []string) error {
	fs := a.newFlags("requests create")
	roomType := fs.String("type", "", "preferred room type")
	floor := fs.Int("floor", -1, "preferred floor")
	roomID := fs.String("room-id", "", "requested room id")
	requirements := fs.String("requirements", "", "special requirements")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	in := model.NewRoomRequest{
		StudentID:           a.session.UserID,
		PreferredRoomType:   model.RoomType(*roomType),
		RequestedRoomID:     *roomID,
		SpecialRequirements: *requirements,
	}
	if *floor >= 0 {
		in.PreferredFloor = floor
	}

	req, err := a.allocation.CreateRequest(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created request %s (%s)\n", req.ID, req.Status)
	return nil
}

func (a *app) planRequest(ctx context.Context, args []string) error {
	fs := a.newFlags("requests plan")
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	if err := a.allocation.Refresh(ctx); err != nil {
		return err
	}

	plan, err := a.allocation.Plan(ctx, id)
	if err != nil {
		return err
	}
	a.printPlan(plan)
	return nil
}

func (a *app) printPlan(plan *allocation.Plan) {
	w := a.table()
	fmt.Fprintf(w, "REQUEST\t%s\n", plan.Request.ID)
	if plan.Requested != nil {
		fmt.Fprintf(w, "REQUESTED\t%s (%s, %d/%d)\n",
			plan.Requested.RoomNumber, plan.Requested.Status, plan.Requested.CurrentOccupancy, plan.Requested.Capacity)
	}
	fmt.Fprintf(w, "SOURCE\t%s\n", plan.Source)
	if plan.Token != "" {
		fmt.Fprintf(w, "TOKEN\t%s\n", plan.Token)
	}
	numbers := make([]string, len(plan.Candidates))
	for i, c := range plan.Candidates {
		numbers[i] = c.RoomNumber
	}
	fmt.Fprintf(w, "CANDIDATES\t%s\n", orDash(strings.Join(numbers, ", ")))
	if plan.Selected != nil {
		fmt.Fprintf(w, "SELECTED\t%s\n", plan.Selected.RoomNumber)
	}
	if plan.Warning != "" {
		fmt.Fprintf(w, "WARNING\t%s\n", plan.Warning)
	}
	w.Flush()
}

func (a *app) approveRequest(ctx context.Context, args []string) error {
	fs := a.newFlags("requests approve")
	room := fs.String("room", "", "room id or room number; defaults to the single planned candidate")
	notes := fs.String("notes", "", "admin notes")
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	if err := a.allocation.Refresh(ctx); err != nil {
		return err
	}

	roomID := a.resolveRoomArg(*room)
	if roomID == "" {
		plan, err := a.allocation.Plan(ctx, id)
		if err != nil {
			return err
		}
		if plan.Selected == nil {
			a.printPlan(plan)
			return fmt.Errorf("%w: no single candidate room, pass -room", errUsage)
		}
		roomID = plan.Selected.ID
	}

	req, err := a.allocation.Approve(ctx, id, model.ApprovalInput{RoomID: roomID, Notes: *notes})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "request %s %s, room %s\n", req.ID, req.Status, req.AllocatedRoomID)
	return nil
}

// resolveRoomArg は部屋番号が指定された場合に部屋 ID へ変換します
func (a *app) resolveRoomArg(arg string) string {
	if arg == "" {
		return ""
	}
	for _, r := range a.allocation.Rooms() {
		if r.ID == arg {
			return r.ID
		}
	}
	for _, r := range a.allocation.Rooms() {
		if strings.EqualFold(r.RoomNumber, arg) {
			return r.ID
		}
	}
	return arg
}

func (a *app) rejectRequest(ctx context.Context, args []string) error {
	fs := a.newFlags("requests reject")
	reason := fs.String("reason", "", "rejection reason")
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	if err := a.allocation.Refresh(ctx); err != nil {
		return err
	}

	req, err := a.allocation.Reject(ctx, id, *reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "request %s %s\n", req.ID, req.Status)
	return nil
}
