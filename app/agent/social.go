package agent

import (
	"strings"
	"unicode/utf8"

	"kbchat/textutil"
)

// ContactPrompt is appended to almost every reply so the visitor always has a
// way to leave their contact details.
const ContactPrompt = "También podés hacer clic en “Enviar mis datos” o escribir tus datos en el chat " +
	"para que coordinemos tu consulta, link de pago o llamada."

// ContactAck is returned when the user writes a phone number or email.
const ContactAck = "Gracias, hemos recibido tus datos y te contactaremos a la brevedad posible."

// FallbackResponse is returned when retrieval finds no usable context.
const FallbackResponse = "No tengo suficiente informacion en la base de conocimiento para responder eso. " +
	"Por favor revisa www.medifestructuras.com o contactanos a eduardo.mediavilla@medifestructuras.com " +
	"o por telefono al +357 96863257."

const systemInstructions = "Eres el asistente virtual oficial de Medifestructuras (www.medifestructuras.com). " +
	"Responde siempre usando solo la informacion que aparece dentro del CONTEXTO y se muy conciso. " +
	"Si no encuentras la respuesta en el CONTEXTO, deja claro que no la tienes y sugiere visitar " +
	"la pagina web, escribir a eduardo.mediavilla@medifestructuras.com o llamar al +357 96863257. " +
	"Evita inventar precios, cursos o servicios que no esten citados. " +
	"Si el usuario vuelve a preguntar o dice que no entendio, reformula la respuesta con un lenguaje mas simple, ejemplos o pasos. " +
	"El historial de la conversacion solo sirve para mantener el tono; no lo uses como fuente de hechos."

const courseResponseGuidelines = "Cuando la pregunta sea sobre cursos, confirma que Medif Estructuras ofrece 9 cursos en total " +
	"(8 de estructuras y 1 de instalaciones), menciona primero esa visión general, luego describe un curso específico " +
	"documentado en la base de conocimientos y cierra con el llamado a la acción sin negar cursos ni decir “no tengo información”."

const (
	replyHello     = "Hola, ¿cómo estás?"
	replyMorning   = "Buenos días, ¿en qué te puedo ayudar?"
	replyAfternoon = "Buenas tardes, ¿en qué te ayudo?"
	replyNight     = "Buenas noches, ¿en qué puedo ayudarte?"
	replyAllGood   = "¡Genial! ¿En qué te puedo ayudar?"
	replyThanks    = "¡Con gusto! Si necesitas algo más, aquí estaré."
	replyAck       = "Perfecto, quedo atento."
	replyBye       = "¡Hasta luego! 😊"
)

// socialResponses maps social one-liners, keyed by their NormalizeSocial form
// (lowercase, accents stripped, repeated letters squeezed). That one key
// covers the "hola"/"holaaa"/"holá" spelling family.
var socialResponses = map[string]string{
	"hola":          replyHello,
	"holi":          replyHello,
	"holis":         replyHello,
	"holita":        replyHello,
	"ola":           replyHello,
	"olas":          replyHello,
	"helo":          replyHello,
	"hey":           replyHello,
	"ey":            replyHello,
	"buenas":        replyHello,
	"buenas buenas": replyHello,
	"que tal":       replyHello,
	"q tal":         replyHello,
	"como estas":    replyHello,
	"como andas":    replyHello,
	"como vas":      replyHello,
	"que onda":      replyHello,
	"onda":          replyHello,
	"que mas":       replyHello,
	"que mas pues":  replyHello,
	"que hubo":      replyHello,
	"quiubo":        replyHello,
	"parce":         replyHello,
	"parcero":       replyHello,
	"wey":           replyHello,
	"che":           replyHello,
	"amigo":         replyHello,
	"que pasa":      replyHello,
	"todo bien tio": replyHello,
	"buenas tio":    replyHello,

	"buenos dias": replyMorning,
	"buen dia":    replyMorning,
	"bd":          replyMorning,
	"b dias":      replyMorning,

	"buenas tardes": replyAfternoon,
	"bt":            replyAfternoon,
	"b tardes":      replyAfternoon,
	"tardes":        replyAfternoon,

	"buenas noches": replyNight,
	"bn":            replyNight,
	"noches":        replyNight,

	"todo bien":    replyAllGood,
	"todo ok":      replyAllGood,
	"todo tranqui": "¡Perfecto! ¿En qué te ayudo?",

	"gracias":         replyThanks,
	"muchas gracias":  replyThanks,
	"mil gracias":     replyThanks,
	"gracias totales": replyThanks,
	"thanks":          replyThanks,
	"ok gracias":      replyThanks,
	"gracias amigo":   replyThanks,
	"gracias bro":     replyThanks,

	"ok":         replyAck,
	"okey":       replyAck,
	"oki":        replyAck,
	"okis":       replyAck,
	"vale":       replyAck,
	"ok vale":    replyAck,
	"perfecto":   replyAck,
	"excelente":  replyAck,
	"genial":     replyAck,
	"de acuerdo": replyAck,
	"entendido":  "Perfecto, gracias por avisar.",
	"listo":      replyAck,
	"dale":       replyAck,
	"va":         replyAck,
	"bien":       replyAck,

	"chau":         replyBye,
	"chao":         replyBye,
	"adios":        replyBye,
	"nos vemos":    replyBye,
	"hasta luego":  replyBye,
	"hasta pronto": "¡Hasta pronto! 😊",
	"bye":          replyBye,
	"bye bye":      replyBye,
}

// courtesyPatterns match longer thank-you or sign-off phrases: every keyword
// must appear somewhere in the normalized message. Checked in order.
var courtesyPatterns = []struct {
	keywords []string
	response string
}{
	{[]string{"agradecid"}, replyThanks},
	{[]string{"muchas", "gracias"}, replyThanks},
	{[]string{"con", "gusto"}, replyThanks},
	{[]string{"gracias", "por", "todo"}, replyThanks},
	{[]string{"gracias", "de", "nuevo"}, replyThanks},
	{[]string{"gracias", "por", "la", "info"}, replyThanks},
	{[]string{"gracias"}, replyThanks},
	{[]string{"que", "pase", "buen", "dia"}, "Que tengas un excelente día."},
	{[]string{"pase", "buen", "dia"}, "Que tengas un excelente día."},
	{[]string{"que", "este", "bien"}, "Que estés muy bien."},
	{[]string{"que", "este", "muy"}, "Que estés muy bien."},
	{[]string{"todo", "claro"}, replyAck},
	{[]string{"perfecto", "gracias"}, replyAck},
	{[]string{"perfecto"}, replyAck},
	{[]string{"excelente"}, replyAck},
	{[]string{"genial"}, replyAck},
}

// informativeMarkers suppress the social short-circuit: a message carrying any
// of these words is a real question even if it also says "gracias".
var informativeMarkers = []string{
	"precio", "costo", "cuesta", "curso", "servicio", "informacion",
	"detalle", "solicito", "saber", "necesito", "puedo", "puedes",
	"instalar", "disenar", "diseno", "calcular", "cotizacion",
	"presupuesto", "proyecto", "consulta", "contacto", "telefono",
	"email", "correo",
}

// greetingKeywords are the social messages that do NOT get the contact prompt
// appended; answering "hola" with a sales pitch reads badly.
var greetingKeywords = map[string]struct{}{
	"hola":       {},
	"holi":       {},
	"buen":       {},
	"buenas":     {},
	"buenos":     {},
	"saludos":    {},
	"hey":        {},
	"buen dia":   {},
	"que tal":    {},
	"como estas": {},
}

// DetectSocialResponse returns the canned reply for greetings and courtesy
// messages, or "" when the message deserves the full pipeline. Questions and
// messages containing informative markers are never short-circuited.
func DetectSocialResponse(message string) string {
	normalized := textutil.NormalizeSocial(message)
	if response, ok := socialResponses[normalized]; ok {
		return response
	}
	if strings.ContainsAny(message, "?¿") {
		return ""
	}
	for _, marker := range informativeMarkers {
		if strings.Contains(normalized, marker) {
			return ""
		}
	}
	for _, pattern := range courtesyPatterns {
		if containsAll(normalized, pattern.keywords) {
			return pattern.response
		}
	}
	return ""
}

func containsAll(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if !strings.Contains(text, keyword) {
			return false
		}
	}
	return true
}

// IsGreeting reports whether the normalized message is a plain greeting.
func IsGreeting(normalizedMessage string) bool {
	_, ok := greetingKeywords[normalizedMessage]
	return ok
}

// AppendContactPrompt adds the contact call-to-action to an answer, keeping it
// out of replies that already carry it.
func AppendContactPrompt(answer string) string {
	stripped := strings.TrimSpace(answer)
	if stripped == "" {
		return ContactPrompt
	}
	if strings.Contains(stripped, ContactPrompt) {
		return stripped
	}
	punctuation := "."
	if last, _ := utf8.DecodeLastRuneInString(stripped); strings.ContainsRune(".!?", last) {
		punctuation = ""
	}
	return stripped + punctuation + " " + ContactPrompt
}
