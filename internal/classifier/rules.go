package classifier

var (
	contactMarkers = Any("whatsapp", "wa.me", "teléfono", "telefono", "celular", "escribinos", "correo", "email", "e-mail", "@")

	zoneTerms = Any("zona", "provincia", "localidad", "ciudad", "ubicación", "dónde te encontrás", "donde se encuentra", "región")

	referralIntent    = Any("deriv", "refer", "contact", "especialista", "specialist", "asesor")
	explanatoryIntent = Any("inform", "para que", "a fin de", "con el fin de", "so that", "in order to")

	declineMarkers = Any("no realizamos", "no ofrecemos", "no brindamos", "no trabajamos", "no contamos con", "no cubrimos", "fuera de nuestro alcance", "lamentablemente no")

	// Services Mr. Lift does not offer; a reply promising them is likely invented.
	outOfCatalog = Any(
		"venta de repuestos", "vendemos", "alquiler de", "alquilamos",
		"reparación de motores", "mantenimiento de ascensores", "instalación de ascensores",
		"soldadura", "pintura industrial", "seguro de", "financiación", "envío a domicilio",
	)
)

// DefaultRules is the built-in rule table.
func DefaultRules() []Rule {
	return []Rule{
		{Tag: Tag{Kind: KindInfo, Label: "hand-off / contact"}, Match: contactMarkers},
		{Tag: Tag{Kind: KindSuccess, Label: "asked for zone"}, Match: zoneTerms},
		{Tag: Tag{Kind: KindSuccess, Label: "informed hand-off"}, Match: All(referralIntent, explanatoryIntent)},
		{Tag: Tag{Kind: KindWarning, Label: "possible direct hand-off"}, Match: All(referralIntent, Not(explanatoryIntent))},
		{Tag: Tag{Kind: KindNeutral, Label: "declined / not covered"}, Match: declineMarkers},
		{Tag: Tag{Kind: KindDanger, Label: "possible fabrication"}, Match: outOfCatalog},
	}
}
