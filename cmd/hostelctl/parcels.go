package main

import (
	"context"
	"fmt"

	"github.com/uma-arai/sbcntr-hostel/internal/auth"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
)

func (a *app) parcelCommands() map[string]command {
	return map[string]command{
		"list": {
			usage: "[-student ID] [-status arrived|claimed]",
			roles: anyRole,
			run:   a.listParcels,
		},
		"log": {
			usage: "-student ID -sender NAME [-courier NAME] [-description TEXT]",
			roles: staffRoles,
			run:   a.logParcel,
		},
		"claim": {
			usage: "<token>",
			roles: staffRoles,
			run:   a.claimParcel,
		},
	}
}

func (a *app) listParcels(ctx context.Context, args []string) error {
	fs := a.newFlags("parcels list")
	student := fs.String("student", "", "student id")
	status := fs.String("status", "", "filter by status")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	// 学生は自分の荷物のみ
	if a.session.Role == auth.RoleStudent {
		*student = a.session.UserID
	}

	parcels, err := a.parcels.ListParcels(ctx, *student, model.ParcelStatus(*status))
	if err != nil {
		return err
	}

	w := a.table()
	fmt.Fprintln(w, "ID\tSTUDENT\tSENDER\tSTATUS\tRECEIVED\tCLAIMED")
	for _, p := range parcels {
		student := p.StudentID
		if p.StudentName != "" {
			student = p.StudentName
		}
		claimed := "-"
		if p.ClaimedAt != nil {
			claimed = formatTime(*p.ClaimedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, student, p.SenderName, p.Status, formatTime(p.ReceivedAt), claimed)
	}
	return w.Flush()
}

func (a *app) logParcel(ctx context.Context, args []string) error {
	fs := a.newFlags("parcels log")
	student := fs.String("student", "", "student id")
	sender := fs.String("sender", "", "sender name")
	courier := fs.String("courier", "", "courier")
	description := fs.String("description", "", "description")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	p, err := a.parcels.LogParcel(ctx, model.NewParcel{
		StudentID:   *student,
		SenderName:  *sender,
		Courier:     *courier,
		Description: *description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged parcel %s\nclaim token: %s\n", p.ID, p.QRToken)
	return nil
}

func (a *app) claimParcel(ctx context.Context, args []string) error {
	token, err := parseWithID(a.newFlags("parcels claim"), args)
	if err != nil {
		return err
	}

	result, err := a.parcels.Claim(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "parcel %s from %s claimed by %s at %s\n",
		result.Parcel.ID, result.Parcel.SenderName, result.ClaimedBy, formatTime(result.ClaimedAt))
	return nil
}
