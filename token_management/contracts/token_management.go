package contracts

// Usage is the token count accumulated by the chat calls of one run.
type Usage struct {
	Input    int
	Output   int
	Requests int
}

func (u Usage) Total() int {
	return u.Input + u.Output
}

type ITokenManagement interface {
	UsedTokens(inputToken int, outputToken int)
	Usage() Usage
	CalculateCost(providerName string, modelName string, usage Usage) float64
	DisplayTokens(chatProviderName string, chatModel string)
}
