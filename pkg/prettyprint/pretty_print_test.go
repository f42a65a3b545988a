package prettyprint

import "testing"

func TestPrettyPrint(t *testing.T) {
	cases := []struct {
		in  Doc
		out string
	}{
		{
			Seq(Text("foo"), Text(" "), Text("bar")),
			`foo bar`,
		},
		{
			Seq(Text("edge"), Surround("(", Join([]Doc{Text("X"), Text("Y")}, CommaSpace), ")")),
			`edge(X, Y)`,
		},
		{
			Lines([]Doc{Text("a :- b."), Empty, Text("a/0")}),
			`a :- b.
a/0`,
		},
		{
			Join(nil, CommaSpace),
			``,
		},
	}

	for idx, testCase := range cases {
		actual := testCase.in.String()
		if actual != testCase.out {
			t.Fatalf("case %d:\nEXPECTED\n\n%s\n\nGOT\n\n%s", idx, testCase.out, actual)
		}
	}
}

func TestDebug(t *testing.T) {
	doc := Seq(Text("a"), Newline)
	if doc.Debug() != `Seq(Text("a"), Newline)` {
		t.Fatalf("unexpected debug output: %s", doc.Debug())
	}
}
