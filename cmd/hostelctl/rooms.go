package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/service/report"
)

func (a *app) roomCommands() map[string]command {
	return map[string]command{
		"list": {
			usage: "[-status S] [-type T] [-floor N]",
			roles: anyRole,
			run:   a.listRooms,
		},
		"create": {
			usage: "-number N -type T -capacity N [-block B] [-floor N] [-occupancy N] [-status S]",
			roles: adminRoles,
			run:   a.createRoom,
		},
		"update": {
			usage: "<room-id> [-number N] [-type T] [-capacity N] [-block B] [-floor N] [-occupancy N] [-status S]",
			roles: adminRoles,
			run:   a.updateRoom,
		},
		"delete": {
			usage: "<room-id>",
			roles: adminRoles,
			run:   a.deleteRoom,
		},
		"export": {
			usage: "[-out rooms.xlsx]",
			roles: adminRoles,
			run:   a.exportRooms,
		},
	}
}

type roomFlags struct {
	number    *string
	block     *string
	floor     *int
	roomType  *string
	capacity  *int
	occupancy *int
	status    *string
}

func bindRoomFlags(fs *flag.FlagSet) roomFlags {
	return roomFlags{
		number:    fs.String("number", "", "room number"),
		block:     fs.String("block", "", "block"),
		floor:     fs.Int("floor", 0, "floor"),
		roomType:  fs.String("type", "", "room type"),
		capacity:  fs.Int("capacity", 0, "number of beds"),
		occupancy: fs.Int("occupancy", 0, "current occupancy"),
		status:    fs.String("status", "", "room status"),
	}
}

// apply は指定されたフラグだけを room に反映します
func (f roomFlags) apply(room *model.Room, set map[string]bool) {
	if set["number"] {
		room.RoomNumber = *f.number
	}
	if set["block"] {
		room.Block = *f.block
	}
	if set["floor"] {
		room.Floor = *f.floor
	}
	if set["type"] {
		room.RoomType = model.RoomType(*f.roomType)
	}
	if set["capacity"] {
		room.Capacity = *f.capacity
	}
	if set["occupancy"] {
		room.CurrentOccupancy = *f.occupancy
	}
	if set["status"] {
		room.Status = model.RoomStatus(*f.status)
	}
}

func (a *app) listRooms(ctx context.Context, args []string) error {
	fs := a.newFlags("rooms list")
	status := fs.String("status", "", "filter by status")
	roomType := fs.String("type", "", "filter by room type")
	floor := fs.Int("floor", -1, "filter by floor")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	filter := model.ListFilter{}
	if *status != "" {
		filter["status"] = *status
	}
	if *roomType != "" {
		filter["room_type"] = *roomType
	}
	if *floor >= 0 {
		filter["floor"] = strconv.Itoa(*floor)
	}

	rooms, err := a.panels.Rooms.List(ctx, filter)
	if err != nil {
		return err
	}

	w := a.table()
	fmt.Fprintln(w, "ID\tNUMBER\tBLOCK\tFLOOR\tTYPE\tBEDS\tSTATUS")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d/%d\t%s\n",
			r.ID, r.RoomNumber, orDash(r.Block), r.Floor, r.RoomType, r.CurrentOccupancy, r.Capacity, r.Status)
	}
	return w.Flush()
}

func (a *app) createRoom(ctx context.Context, args []string) error {
	fs := a.newFlags("rooms create")
	rf := bindRoomFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	room := model.Room{Status: model.RoomStatusAvailable}
	rf.apply(&room, visited(fs))
	if room.Status == model.RoomStatusAvailable {
		room.Status = room.DerivedStatus()
	}

	created, err := a.panels.Rooms.Create(ctx, room)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created room %s (%s)\n", created.RoomNumber, created.ID)
	return nil
}

func (a *app) updateRoom(ctx context.Context, args []string) error {
	fs := a.newFlags("rooms update")
	rf := bindRoomFlags(fs)
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}

	room, err := a.panels.Rooms.Get(ctx, id)
	if err != nil {
		return err
	}
	rf.apply(room, visited(fs))

	updated, err := a.panels.Rooms.Update(ctx, id, *room)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated room %s: %d/%d %s\n",
		updated.RoomNumber, updated.CurrentOccupancy, updated.Capacity, updated.Status)
	return nil
}

func (a *app) deleteRoom(ctx context.Context, args []string) error {
	id, err := parseWithID(a.newFlags("rooms delete"), args)
	if err != nil {
		return err
	}
	if err := a.panels.Rooms.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted room %s\n", id)
	return nil
}

func (a *app) exportRooms(ctx context.Context, args []string) error {
	fs := a.newFlags("rooms export")
	out := fs.String("out", "rooms.xlsx", "output file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	rooms, err := a.panels.Rooms.List(ctx, model.ListFilter{})
	if err != nil {
		return err
	}
	data, err := report.RoomRoster(rooms)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	fmt.Fprintf(a.out, "exported %d rooms to %s\n", len(rooms), *out)
	return nil
}
