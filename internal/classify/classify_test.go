package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestnik/internal/config"
	"vestnik/internal/feed"
)

func testClassifier() *Classifier {
	return New(config.Default())
}

func TestKeywordScoreCountsHits(t *testing.T) {
	score := KeywordScore("инфляция ускорилась, бюджет пересмотрен", []string{"инфляци", "бюджет", "налог"})
	assert.Equal(t, 2, score)
	assert.Zero(t, KeywordScore("текст без сигналов", []string{"инфляци"}))
}

func TestRegionPrefersStrongerSignal(t *testing.T) {
	c := testClassifier()

	domestic := feed.NewsItem{
		Title:       "Госдума приняла закон о бюджете",
		Description: "Москва утвердила параметры на следующий год.",
	}
	require.True(t, c.Classify(&domestic))
	assert.Equal(t, RegionRussia, domestic.Region)

	world := feed.NewsItem{
		Title:       "США и Евросоюз согласовали новые пошлины",
		Description: "Вашингтон и Брюссель завершили переговоры по тарифам.",
	}
	require.True(t, c.Classify(&world))
	assert.Equal(t, RegionWorld, world.Region)
}

func TestRegionZeroTieUsesSourceHint(t *testing.T) {
	c := testClassifier()

	hinted := feed.NewsItem{
		Title:       "Открыт новый маршрут скоростного трамвая",
		Description: "Транспорт свяжет два берега, запуск намечен на осень.",
		Category:    "general",
	}
	require.True(t, c.Classify(&hinted))
	assert.Equal(t, RegionRussia, hinted.Region)

	unhinted := hinted
	unhinted.Region = ""
	unhinted.Category = "world"
	require.True(t, c.Classify(&unhinted))
	assert.Equal(t, RegionWorld, unhinted.Region)
}

func TestTopicPriorityChain(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		name  string
		item  feed.NewsItem
		topic string
	}{
		{
			"conflict wins",
			feed.NewsItem{Title: "Обстрел приграничного района, армия приведена в готовность", Description: "Сообщается о работе ПВО, экономика региона страдает."},
			TopicConflict,
		},
		{
			"conflict noise veto",
			feed.NewsItem{Title: "Военные учения прошли на полигоне, армия отработала манёвры", Description: "Политика министерства обороны предполагает регулярные тренировки."},
			TopicPolitics,
		},
		{
			"economy over society on tie",
			feed.NewsItem{Title: "Банк повысил ставку по вкладам для пенсионеров", Description: "Пенсия теперь будет расти медленнее инфляции, считает банк."},
			TopicEconomy,
		},
		{
			"politics fallback",
			feed.NewsItem{Title: "Парламент обсудил законопроект о выборах", Description: "Оппозиция потребовала поправок, переговоры продолжаются."},
			TopicPolitics,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := tt.item
			require.True(t, c.Classify(&item))
			assert.Equal(t, tt.topic, item.Topic)
		})
	}
}

func TestUndeterminedTopicIsDropped(t *testing.T) {
	c := testClassifier()
	item := feed.NewsItem{
		Title:       "Интересные факты о погоде в выходные",
		Description: "Синоптики рассказали о температуре воздуха.",
	}
	assert.False(t, c.Classify(&item))
	assert.Empty(t, item.Topic)
}

func TestMultipleCategoriesAndPrimary(t *testing.T) {
	c := testClassifier()
	item := feed.NewsItem{
		Title:       "Санкции затронули экспорт: министр провёл переговоры",
		Description: "Экономика адаптируется, правительство готовит ответные меры, бюджет будет пересмотрен.",
	}
	require.True(t, c.Classify(&item))
	assert.Contains(t, item.Categories, TopicEconomy)
	assert.Contains(t, item.Categories, TopicPolitics)
	assert.Equal(t, item.Categories[0], item.Category)
	assert.Equal(t, "экономика_"+item.Region, item.BucketKey())
}
