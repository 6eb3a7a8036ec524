package models

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
)

// ModeID identifies a game mode. Bits above the base id select variants:
// 128 crab, 256/512/768 double/triple/quadruple stimulus, 1024 self-paced.
type ModeID int

const (
	CrabFlag      ModeID = 128
	MultiMask     ModeID = 768
	SelfPacedFlag ModeID = 1024

	DualMode ModeID = 2
)

// BaseMode strips every variant bit from id.
func BaseMode(id ModeID) ModeID { return id % 128 }

// ModeDescriptor describes which modalities a mode trains and how.
type ModeDescriptor struct {
	ID         ModeID
	ShortName  string
	LongName   string
	Modalities []Modality
	Crab       bool
	Multi      int
	SelfPaced  bool
}

// Has reports whether the mode trains m.
func (d ModeDescriptor) Has(m Modality) bool {
	return slices.Contains(d.Modalities, m)
}

// OnlyArithmetic reports whether arithmetic is the sole modality.
func (d ModeDescriptor) OnlyArithmetic() bool {
	return len(d.Modalities) == 1 && d.Modalities[0] == Arithmetic
}

// PositionCount is the number of simultaneously displayed position slots.
func (d ModeDescriptor) PositionCount() int {
	n := 0
	for _, m := range d.Modalities {
		if m.PositionSlot() > 0 {
			n++
		}
	}
	return n
}

// Label renders the short session label, e.g. "D2B" or "2xCD3B".
func (d ModeDescriptor) Label(back int) string {
	return d.ShortName + strconv.Itoa(back) + "B"
}

type baseMode struct {
	id         ModeID
	short      string
	long       string
	modalities []Modality
}

var baseModes = []baseMode{
	{2, "D", "Dual", []Modality{Position1, Audio}},
	{3, "PCA", "Position, Color, Sound", []Modality{Position1, Color, Audio}},
	{4, "DC", "Dual Combination", []Modality{VisVis, VisAudio, AudioVis, Audio}},
	{5, "TC", "Tri Combination", []Modality{Position1, VisVis, VisAudio, AudioVis, Audio}},
	{6, "QC", "Quad Combination", []Modality{Position1, VisVis, VisAudio, Color, AudioVis, Audio}},
	{7, "A", "Arithmetic", []Modality{Arithmetic}},
	{8, "DA", "Dual Arithmetic", []Modality{Position1, Arithmetic}},
	{9, "TA", "Triple Arithmetic", []Modality{Position1, Arithmetic, Color}},
	{10, "Po", "Position", []Modality{Position1}},
	{11, "Au", "Sound", []Modality{Audio}},
	{12, "TCC", "Tri Combination (Color)", []Modality{VisVis, VisAudio, Color, AudioVis, Audio}},
	{20, "PC", "Position, Color", []Modality{Position1, Color}},
	{21, "PI", "Position, Image", []Modality{Position1, Image}},
	{22, "CA", "Color, Sound", []Modality{Color, Audio}},
	{23, "IA", "Image, Sound", []Modality{Image, Audio}},
	{24, "CI", "Color, Image", []Modality{Color, Image}},
	{25, "PCI", "Position, Color, Image", []Modality{Position1, Color, Image}},
	{26, "PIA", "Position, Image, Sound", []Modality{Position1, Image, Audio}},
	{27, "CIA", "Color, Image, Sound", []Modality{Color, Image, Audio}},
	{28, "Q", "Quad", []Modality{Position1, Color, Image, Audio}},
	{100, "AA", "Sound, Sound2", []Modality{Audio, Audio2}},
	{101, "PAA", "Position, Sound, Sound2", []Modality{Position1, Audio, Audio2}},
	{102, "CAA", "Color, Sound, Sound2", []Modality{Color, Audio, Audio2}},
	{103, "IAA", "Image, Sound, Sound2", []Modality{Image, Audio, Audio2}},
	{104, "PCAA", "Position, Color, Sound, Sound2", []Modality{Position1, Color, Audio, Audio2}},
	{105, "PIAA", "Position, Image, Sound, Sound2", []Modality{Position1, Image, Audio, Audio2}},
	{106, "CIAA", "Color, Image, Sound, Sound2", []Modality{Color, Image, Audio, Audio2}},
	{107, "P", "Pentuple", []Modality{Position1, Color, Image, Audio, Audio2}},
}

var modeTable = buildModeTable()

func buildModeTable() map[ModeID]ModeDescriptor {
	table := make(map[ModeID]ModeDescriptor, len(baseModes)*16)
	for _, b := range baseModes {
		table[b.id] = ModeDescriptor{
			ID: b.id, ShortName: b.short, LongName: b.long,
			Modalities: slices.Clone(b.modalities), Multi: 1,
		}
		table[b.id|CrabFlag] = ModeDescriptor{
			ID: b.id | CrabFlag, ShortName: "C" + b.short, LongName: "Crab " + b.long,
			Modalities: slices.Clone(b.modalities), Crab: true, Multi: 1,
		}
	}

	multiNames := map[int]string{2: "Double-stim", 3: "Triple-stim", 4: "Quadruple-stim"}
	for _, id := range sortedIDs(table) {
		d := table[id]
		if !multiEligible(d.Modalities) {
			continue
		}
		for n := 2; n <= 4; n++ {
			nd := d
			nd.ID = id | ModeID(256*(n-1))
			nd.Multi = n
			nd.ShortName = strconv.Itoa(n) + "x" + d.ShortName
			nd.LongName = multiNames[n] + " " + d.LongName
			nd.Modalities = multiModalities(d.Modalities, n)
			table[nd.ID] = nd
		}
	}

	for _, id := range sortedIDs(table) {
		d := table[id]
		sp := d
		sp.ID = id | SelfPacedFlag
		sp.ShortName = "SP-" + d.ShortName
		sp.LongName = "Self-paced " + d.LongName
		sp.Modalities = slices.Clone(d.Modalities)
		sp.SelfPaced = true
		table[sp.ID] = sp
	}
	return table
}

func multiEligible(mods []Modality) bool {
	if slices.Contains(mods, Color) && slices.Contains(mods, Image) {
		return false
	}
	if !slices.Contains(mods, Position1) {
		return false
	}
	return !slices.Contains(mods, VisVis) && !slices.Contains(mods, Arithmetic)
}

func multiModalities(base []Modality, n int) []Modality {
	out := make([]Modality, 0, len(base)+2*n)
	hasVis := slices.Contains(base, Color) || slices.Contains(base, Image)
	for _, m := range base {
		switch m {
		case Position1:
			for i := 1; i <= n; i++ {
				out = append(out, Position1+Modality(i-1))
			}
			if hasVis {
				for i := 1; i <= n; i++ {
					out = append(out, Vis1+Modality(i-1))
				}
			}
		case Color, Image:
		default:
			out = append(out, m)
		}
	}
	return out
}

func sortedIDs(table map[ModeID]ModeDescriptor) []ModeID {
	ids := make([]ModeID, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LookupMode returns the descriptor for id.
func LookupMode(id ModeID) (ModeDescriptor, error) {
	d, ok := modeTable[id]
	if !ok {
		return ModeDescriptor{}, fmt.Errorf("unknown game mode %d", id)
	}
	d.Modalities = slices.Clone(d.Modalities)
	return d, nil
}

// Modes lists every known mode id in ascending order.
func Modes() []ModeID {
	return sortedIDs(modeTable)
}
