package analyzer

// DefaultDescribePrompt asks the vision model for a detailed description of
// the photo, answered in Brazilian Portuguese.
const DefaultDescribePrompt = `Analise e descreva com detalhes a seguinte imagem, incluindo a aparência do
objeto(s). Nota: Sempre responda em português do Brasil (pt-br).`

// DefaultSystemInstruction sets up the text model as a nutrition expert.
const DefaultSystemInstruction = `Você é um especialista em nutrição e alimentação. Você analisa a descrição, fornecida, de uma imagem de alimentos.
Então, você deve fornecer ao usuário observações sobre a descrição da imagem, como: possíveis calorias,
classificação do alimento (se é bom ou ruim), e oferece sugestões de como tornar a refeição mais saudável
ou mais balanceada. NOTE: Sempre responda em português (pt-br).`
