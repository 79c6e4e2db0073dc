package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func labels(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Label
	}
	return out
}

func TestFold(t *testing.T) {
	require.Equal(t, "ubicacion", Fold("Ubicación"))
	require.Equal(t, "donde estas?", Fold("DÓNDE estás?"))
	require.Equal(t, "grua torre", Fold("grúa torre"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Tag
	}{
		{
			name: "empty",
			text: "   ",
			want: []Tag{},
		},
		{
			name: "contact marker",
			text: "Podés escribirnos por WhatsApp al número de la web.",
			want: []Tag{{Kind: KindInfo, Label: "hand-off / contact"}},
		},
		{
			name: "zone question without accents",
			text: "¿En que ZONA estas?",
			want: []Tag{{Kind: KindSuccess, Label: "asked for zone"}},
		},
		{
			name: "informed hand-off",
			text: "Te voy a derivar con un especialista para que te informe los costos.",
			want: []Tag{{Kind: KindSuccess, Label: "informed hand-off"}},
		},
		{
			name: "direct hand-off",
			text: "Te derivo con un asesor.",
			want: []Tag{{Kind: KindWarning, Label: "possible direct hand-off"}},
		},
		{
			name: "decline",
			text: "Lamentablemente no realizamos ese servicio.",
			want: []Tag{{Kind: KindNeutral, Label: "declined / not covered"}},
		},
		{
			name: "fabrication",
			text: "Sí, también hacemos soldadura de estructuras.",
			want: []Tag{{Kind: KindDanger, Label: "possible fabrication"}},
		},
		{
			name: "several rules fire in table order",
			text: "¿En qué provincia estás? Así te paso el WhatsApp del especialista de tu zona.",
			want: []Tag{
				{Kind: KindInfo, Label: "hand-off / contact"},
				{Kind: KindSuccess, Label: "asked for zone"},
				{Kind: KindWarning, Label: "possible direct hand-off"},
			},
		},
		{
			name: "nothing matches",
			text: "Sí, inspeccionamos grúas torre.",
			want: []Tag{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	text := "Te derivo por WhatsApp para que un especialista te informe. No ofrecemos alquiler de equipos."
	first := Classify(text)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Classify(text))
	}
	require.Equal(t, []string{
		"hand-off / contact",
		"informed hand-off",
		"declined / not covered",
		"possible fabrication",
	}, labels(first))
}

func TestNewRulesAreAdditive(t *testing.T) {
	extra := Rule{Tag: Tag{Kind: KindWarning, Label: "mentions price"}, Match: Any("precio", "costo")}
	c := New(append(DefaultRules(), extra))

	require.Equal(t, []string{"mentions price"}, labels(c.Classify("El costo depende del equipo.")))
	require.Empty(t, Default().Classify("El costo depende del equipo."))
}

func TestMatchers(t *testing.T) {
	m := All(Any("a"), Not(Any("b")))
	require.True(t, m("xa"))
	require.False(t, m("ab"))
	require.False(t, m("x"))
}
