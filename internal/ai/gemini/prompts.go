package gemini

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/neurovoki/neurovoki/internal/game"
)

// contextPrompt carries the audience, difficulty, theme and exclusion
// constraints shared by the generation prompts. The random seed discourages
// the model from repeating itself across otherwise identical requests.
func contextPrompt(settings game.Settings, excluded []string) string {
	diff := "СЛОЖНОСТЬ: СРЕДНЯЯ."
	switch settings.Difficulty {
	case game.DifficultyEasy:
		diff = "СЛОЖНОСТЬ: ЛЕГКАЯ. Только хиты."
	case game.DifficultyHard:
		diff = "СЛОЖНОСТЬ: ВЫСОКАЯ. Редкие факты."
	}
	themes := "Общая эрудиция"
	if len(settings.Themes) > 0 {
		themes = strings.Join(settings.Themes, ", ")
	}
	exclusion := ""
	if len(excluded) > 0 {
		exclusion = fmt.Sprintf("ЗАПРЕЩЕНО: %s.", strings.Join(excluded, ", "))
	}
	return fmt.Sprintf("Аудитория: %d лет.\n%s\nТЕКУЩАЯ ТЕМА: %q.\n%s\nSeed: %d",
		settings.AverageAge, diff, themes, exclusion, rand.Int63())
}

func imageTaskPrompt(settings game.Settings, excluded []string) string {
	return fmt.Sprintf(`%s
ЗАДАЧА: Придумай идиому, пословицу, название фильма или мем, которые ЖЕЛЕЗНО относятся к теме %q.
ВЕРНИ ТОЛЬКО JSON.
{
  "target": "Сама фраза/название",
  "visual_prompt": "Промпт для генерации картинки на английском. Опиши БУКВАЛЬНОЕ изображение метафоры. High quality, 8k render.",
  "hint": "Короткая текстовая подсказка"
}`, contextPrompt(settings, excluded), strings.Join(settings.Themes, ", "))
}

func songTaskPrompt(theme string, excluded []string) string {
	exclusion := ""
	if len(excluded) > 0 {
		exclusion = fmt.Sprintf("ЗАПРЕЩЕНО ИСПОЛЬЗОВАТЬ: %s.", strings.Join(excluded, ", "))
	}
	return fmt.Sprintf(`РОЛЬ: Душный бюрократ, фанат темы %q.
%s
Seed: %d
ЗАДАЧА: Перепиши припев СУПЕР-ХИТА используя термины темы %q и канцелярит.
МАКСИМУМ 25 СЛОВ. Без рифм.
ВЕРНИ ТОЛЬКО JSON.
{
  "targetSong": "Исполнитель - Название",
  "rewrittenLyrics": "Текст (до 25 слов)",
  "hint": "Подсказка"
}`, theme, exclusion, rand.Int63(), theme)
}

func explainTaskPrompt(settings game.Settings, excluded []string) string {
	return fmt.Sprintf(`%s
ЗАДАЧА: Назови одно слово или короткую фразу (существительное), ключевое для темы %q.
Верни ТОЛЬКО слово/фразу. Без кавычек.`,
		contextPrompt(settings, excluded), strings.Join(settings.Themes, ", "))
}

func promptTaskPrompt(settings game.Settings) string {
	return fmt.Sprintf(`ТЕМА: %q. Придумай описание картинки.
ВЕРНИ ТОЛЬКО JSON.
{ "prompt": "english visual prompt", "keywords": ["russian key object"] }
Seed: %d`, strings.Join(settings.Themes, ", "), rand.Int63())
}

func judgePrompt(target, answer string) string {
	return fmt.Sprintf(`Ответ: %q. Игрок: %q.
Оцени 0-10.
ВЕРНИ ТОЛЬКО JSON: { "score": number, "feedback": "string" }`, target, answer)
}

func explanationPrompt(word, explanation string) string {
	return fmt.Sprintf(`Секретное слово: %q.
Объяснение: %q.
Попробуй угадать слово по объяснению.
ВЕРНИ ТОЛЬКО JSON.
{
  "isCorrect": boolean,
  "aiGuess": string,
  "points": number (0-10),
  "reasoning": string,
  "definition": string
}`, word, explanation)
}

func comparePrompt() string {
	return `Сравни изображения (0-100). ВЕРНИ JSON: { "score": number, "feedback": "string" }`
}

func negotiationPrompt(target, answer, argument string, maxAddable int) string {
	return fmt.Sprintf(`Судья. Вопрос: %q. Ответ: %q.
Аргумент: %q. Макс баллов: %d.
ВЕРНИ ТОЛЬКО JSON: { "approved": boolean, "pointsAwarded": number, "reply": "string" }`,
		target, answer, argument, maxAddable)
}
