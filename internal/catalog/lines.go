package catalog

// Figure is a constellation stick figure drawn between catalog stars,
// referenced by HIP number.
type Figure struct {
	Constellation string
	Segments      [][2]int
}

// Figures are the stick figures served alongside the star field.
var Figures = []Figure{
	{
		Constellation: "Ursa Major",
		Segments: [][2]int{
			{67301, 65378}, {65378, 62956}, {62956, 59774},
			{59774, 54061}, {54061, 53910}, {53910, 58001}, {58001, 59774},
		},
	},
	{
		Constellation: "Orion",
		Segments: [][2]int{
			{27989, 26727}, {25336, 25930}, {25930, 26311}, {26311, 26727},
			{26727, 27366}, {25930, 24436}, {27989, 25336},
		},
	},
	{
		Constellation: "Cassiopeia",
		Segments: [][2]int{
			{746, 3179}, {3179, 4427}, {4427, 6686}, {6686, 8886},
		},
	},
	{
		Constellation: "Cygnus",
		Segments: [][2]int{
			{102098, 100453}, {100453, 95947},
		},
	},
	{
		Constellation: "Lyra",
		Segments: [][2]int{
			{91262, 92420}, {92420, 93194}, {93194, 91262},
		},
	},
}

// Resolve returns the segments of f whose two endpoints are both present in
// stars, as index pairs into stars.
func (f Figure) Resolve(stars []Star) [][2]int {
	idx := make(map[int]int, len(stars))
	for i, s := range stars {
		idx[s.HIP] = i
	}
	var out [][2]int
	for _, seg := range f.Segments {
		a, okA := idx[seg[0]]
		b, okB := idx[seg[1]]
		if okA && okB {
			out = append(out, [2]int{a, b})
		}
	}
	return out
}
