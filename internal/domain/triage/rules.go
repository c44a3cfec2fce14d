package triage

// Question is one yes/no item of the urgency questionnaire.
type Question struct {
	Index    int    `json:"index"`
	Key      string `json:"key"`
	Text     string `json:"text"`
	Weight   int    `json:"weight"`
	Critical bool   `json:"critical"`
}

const (
	KeyDifficultyBreathing = "difficulty_breathing"
	KeyChestPain           = "chest_pain"
	KeyConfusion           = "confusion"
	KeyRecentTrauma        = "recent_trauma"
	KeyHighFever           = "high_fever"
	KeySeverePain          = "severe_pain"
	KeyVomitingOrDiarrhea  = "persistent_vomiting_or_diarrhea"
	KeyChronicIllness      = "chronic_illness"
)

// UrgentScore is the score at or above which a case is urgent even without a
// critical flag.
const UrgentScore = 5

// Critical questions come first; the order is also the order of the array
// form of Answers.
var questions = [QuestionCount]Question{
	{0, KeyDifficultyBreathing, "Are you having difficulty breathing?", 5, true},
	{1, KeyChestPain, "Do you have chest pain?", 5, true},
	{2, KeyConfusion, "Are you confused or disoriented?", 5, true},
	{3, KeyRecentTrauma, "Have you recently suffered a serious injury?", 3, true},
	{4, KeyHighFever, "Do you have a high fever (above 38.5 °C)?", 4, false},
	{5, KeySeverePain, "Is your pain very intense (8 or more out of 10)?", 5, false},
	{6, KeyVomitingOrDiarrhea, "Have you had intense, persistent vomiting or diarrhea (more than 6 episodes in 24 hours)?", 2, false},
	{7, KeyChronicIllness, "Do you have a chronic illness (hypertension, diabetes, high cholesterol, etc.)?", 1, false},
}

var questionIndex = func() map[string]int {
	m := make(map[string]int, len(questions))
	for _, q := range questions {
		m[q.Key] = q.Index
	}
	return m
}()

// Questions returns the questionnaire in answer order.
func Questions() []Question {
	out := make([]Question, len(questions))
	copy(out, questions[:])
	return out
}

// adviceOrder fixes the order advice blocks are emitted in.
var adviceOrder = []string{KeyHighFever, KeySeverePain, KeyVomitingOrDiarrhea, KeyChronicIllness}

var advice = map[string][]string{
	KeyHighFever: {
		"Take paracetamol as directed on the label to bring the fever down.",
		"Drink plenty of fluids to stay hydrated.",
		"Rest and wear light clothing.",
		"Check your temperature every four to six hours.",
	},
	KeySeverePain: {
		"Take an over-the-counter pain reliever as directed on the label.",
		"Rest the painful area and avoid strenuous activity.",
		"Apply cold or heat to the painful area for 15 to 20 minutes at a time.",
		"Note where the pain is and how strong it feels to share at your appointment.",
	},
	KeyVomitingOrDiarrhea: {
		"Take small, frequent sips of an oral rehydration solution.",
		"Avoid dairy, fatty food and alcohol until the symptoms settle.",
		"Reintroduce bland food gradually once the vomiting stops.",
		"Wash your hands often to avoid spreading an infection.",
	},
	KeyChronicIllness: {
		"Keep taking your regular medication as prescribed.",
		"Check your usual readings, such as blood pressure or glucose, more often.",
		"Have your medication list ready for your appointment.",
		"Contact your treating physician if your condition changes.",
	},
}

var genericAdvice = []string{
	"Rest and stay well hydrated.",
	"Monitor your symptoms and book an appointment if they persist or worsen.",
}

const emergencyWarning = "Seek emergency care immediately if you develop difficulty breathing, chest pain, confusion or any other warning sign."

const (
	notePregnancy   = "You reported being pregnant: check with a health professional before taking any medication."
	noteElderly     = "People aged 65 or over have a higher risk of complications: seek care early if symptoms worsen."
	noteComorbidity = "Your chronic condition may worsen with these symptoms: follow your treatment plan closely and seek care early."
)

// ElderlyAge is the age from which the elderly caution note applies.
const ElderlyAge = 65

// comorbidityWatchList is matched case-insensitively against reported
// chronic conditions.
var comorbidityWatchList = []string{"asthma", "copd", "heart disease", "diabetes"}

const (
	messageUrgent    = "Urgent criteria present. Go to an emergency service."
	messageNotUrgent = "No urgent criteria present. You may continue and book a medical appointment."

	transportCanTravel = "Please go to the nearest emergency service as soon as possible."
	transportDispatch  = "Understood. A doctor or health team will be sent to your location for urgent care."
)
