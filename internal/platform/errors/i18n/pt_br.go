package i18n

// messagesPtBR holds the Brazilian Portuguese message templates.
var messagesPtBR = map[Code]string{
	CodeUnknown: "Algo deu errado. Tente novamente.",

	CodeUnauthorized:      "Entre para continuar.",
	CodePairGrantInvalid:  "Não foi possível verificar as credenciais do casal.",
	CodePairGrantExpired:  "As credenciais do casal expiraram. Entre novamente.",
	CodePairGrantMismatch: "As credenciais não correspondem a este casal.",

	CodeRendezvousPairIDEmpty:        "Um casal é obrigatório.",
	CodeRendezvousUserIDEmpty:        "Um usuário é obrigatório.",
	CodeRendezvousSessionIDEmpty:     "Uma sessão é obrigatória.",
	CodeRendezvousChoicesEmpty:       "Escolha pelo menos uma opção antes de enviar.",
	CodeRendezvousSessionUnavailable: "Esta rodada terminou. Comecem uma nova juntos.",
	CodeRendezvousNotAParticipant:    "Somente vocês dois podem participar desta rodada.",

	CodeOutcomeFilterInvalid:    "O filtro de histórico {{.Filter}} não é válido.",
	CodeOutcomePageTokenInvalid: "A referência de página do histórico não é mais válida.",

	CodeRequestBodyInvalid: "Não foi possível ler essa solicitação.",
	CodePageSizeInvalid:    "O tamanho da página deve ser um número inteiro.",

	CodeNotFound:               "Não encontramos isso.",
	CodeWaitingSessionExists:   "Já existe uma rodada aguardando este casal.",
	CodeOutcomeAlreadyRecorded: "Esta decisão já foi registrada.",

	CodeSeedUnavailable: "Algo deu errado. Tente novamente.",
}
