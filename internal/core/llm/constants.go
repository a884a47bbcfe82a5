package llm

// Temperature near zero keeps summaries deterministic across retries.
const defaultTemperature = 0.1
