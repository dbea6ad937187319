// Package report は部屋割りの帳票を作成します
package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/xuri/excelize/v2"
)

// RosterSheet は部屋一覧のシート名です
const RosterSheet = "Rooms"

var rosterHeader = []interface{}{
	"Room Number", "Block", "Floor", "Room Type", "Capacity", "Occupancy", "Free Beds", "Status", "Status Check",
}

// RoomRoster は部屋一覧の xlsx を作成します
// 1行目が見出し、部屋は階と部屋番号の順に並び、最後に合計行が入ります
func RoomRoster(rooms []model.Room) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RosterSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	sorted := make([]model.Room, len(rooms))
	copy(sorted, rooms)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Floor != sorted[j].Floor {
			return sorted[i].Floor < sorted[j].Floor
		}
		return sorted[i].RoomNumber < sorted[j].RoomNumber
	})

	if err := f.SetSheetRow(RosterSheet, "A1", &rosterHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	var capacity, occupancy int
	for i, room := range sorted {
		check := "ok"
		if !room.StatusConsistent() {
			check = fmt.Sprintf("expected %s", room.DerivedStatus())
		}
		row := []interface{}{
			room.RoomNumber,
			room.Block,
			room.Floor,
			string(room.RoomType),
			room.Capacity,
			room.CurrentOccupancy,
			room.FreeBeds(),
			string(room.Status),
			check,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(RosterSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write room %s: %w", room.RoomNumber, err)
		}
		capacity += room.Capacity
		occupancy += room.CurrentOccupancy
	}

	total := []interface{}{"Total", "", "", "", capacity, occupancy, capacity - occupancy}
	cell, err := excelize.CoordinatesToCellName(1, len(sorted)+2)
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(RosterSheet, cell, &total); err != nil {
		return nil, fmt.Errorf("failed to write total row: %w", err)
	}

	if err := f.SetPanes(RosterSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
