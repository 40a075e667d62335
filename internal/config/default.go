package config

// Default returns the built-in configuration. The keyword lists are the
// editorial core of the pipeline: classification, filtering and importance
// scoring all run on plain substring matching over these lists, so tuning
// coverage means editing them here or overriding via YAML.
func Default() *Config {
	return &Config{
		DatabasePath: "vestnik.db",

		CheckIntervalMinutes: 60,
		PublishDelayMinutes:  30,
		PostPauseSeconds:     5,
		CooldownSeconds:      300,

		MaxPostLength:     4500,
		PerSourceLimit:    10,
		DaysToKeepHistory: 30,

		MinDescriptionLength: 80,

		RequestTimeoutSeconds: 15,
		RetryAttempts:         3,
		RetryDelaySeconds:     2,

		FreshnessHalfLifeHours: 6,
		TopicPriorities: map[string]float64{
			"конфликты": 5.0,
			"экономика": 3.5,
			"политика":  3.0,
			"общество":  2.0,
		},

		PendingMergeSimilarity: 0.5,
		ClusterSimilarity:      0.4,

		Digest: DigestConfig{
			Hour:                  20,
			Minute:                0,
			Timezone:              defaultTimezone,
			LookbackHours:         24,
			BucketCap:             5,
			SecondWaveDelayMinute: 45,
		},

		Breaking: BreakingConfig{
			Enabled:        true,
			BaseThreshold:  8.0,
			ThresholdDelta: 2.0,
			LargeBatch:     25,
			SmallBatch:     5,
			MaxPerHour:     3,
		},

		Monitoring: MonitoringConfig{
			Enabled: false,
			Addr:    ":8090",
		},

		Sources: []Source{
			{Name: "РИА Новости", URL: "https://ria.ru/export/rss2/index.xml", Category: "general", Weight: 1.2},
			{Name: "ТАСС", URL: "https://tass.ru/rss/v2.xml", Category: "general", Weight: 1.2},
			{Name: "Интерфакс", URL: "https://www.interfax.ru/rss.asp", Category: "general", Weight: 1.2},
			{Name: "Коммерсант", URL: "https://www.kommersant.ru/RSS/news.xml", Category: "politics", Weight: 1.1},
			{Name: "РБК", URL: "https://www.rbc.ru/rssall.xml", Category: "general", Weight: 1.1},
			{Name: "Ведомости", URL: "https://www.vedomosti.ru/rss/news", Category: "politics", Weight: 1.1},
			{Name: "Лента.ру", URL: "https://lenta.ru/rss", Category: "general", Weight: 1.0},
			{Name: "Газета.ру", URL: "https://www.gazeta.ru/export/rss/lenta.xml", Category: "general", Weight: 1.0},
			{Name: "Российская Газета", URL: "https://rg.ru/xml/index.xml", Category: "general", Weight: 1.0},
			{Name: "RT", URL: "https://russian.rt.com/rss", Category: "general", Weight: 0.9},
			{Name: "RT Мир", URL: "https://russian.rt.com/rss/news", Category: "world", Weight: 0.9},
			{Name: "RT Политика", URL: "https://russian.rt.com/rss/politics", Category: "politics", Weight: 0.9},
			{Name: "Регнум", URL: "https://regnum.ru/rss", Category: "general", Weight: 0.9},
			{Name: "Новости Mail.ru", URL: "https://news.mail.ru/rss/all/", Category: "general", Weight: 0.8},
			{Name: "Известия", URL: "https://iz.ru/xml/rss/all.xml", Category: "politics", Weight: 1.0},
			{Name: "Московский комсомолец", URL: "https://www.mk.ru/rss/index.xml", Category: "politics", Weight: 0.8},
			{Name: "Независимая газета", URL: "https://www.ng.ru/rss/", Category: "politics", Weight: 0.9},
			{Name: "BBC Russian", URL: "https://www.bbc.com/russian/index.xml", Category: "world", Weight: 1.1},
			{Name: "Deutsche Welle Russian", URL: "https://www.dw.com/ru/rss/rss-ru-all", Category: "world", Weight: 1.0},
			{Name: "Meduza", URL: "https://meduza.io/rss/all", Category: "general", Weight: 1.0},
		},

		Keywords: Keywords{
			Russia: []string{
				"росси", "рф ", "москв", "петербург", "кремл", "госдум",
				"совфед", "путин", "мишустин", "минфин", "цб рф", "центробанк",
				"рубл", "регион", "губернатор",
			},
			World: []string{
				"сша", "евросоюз", "ес ", "китай", "кита", "вашингтон", "брюссел",
				"лондон", "берлин", "париж", "оон", "нато", "украин", "израил",
				"иран", "турци", "япони", "инди", "бразили", "мирово",
			},
			Economy: []string{
				"эконом", "инфляци", "ввп", "бюджет", "налог", "банк", "кредит",
				"ставк", "биржев", "акци", "нефт", "газпром", "экспорт", "импорт",
				"валют", "курс доллара", "курс евро", "тариф", "инвестиц",
			},
			Society: []string{
				"школ", "образовани", "здравоохранени", "больниц", "пенси",
				"пособи", "соцзащит", "курорт", "жкх", "транспорт", "метро",
				"эпидеми", "вакцин", "демографи", "мигрант",
			},
			Politics: []string{
				"политик", "выбор", "парламент", "законопроект", "президент",
				"правительств", "министр", "переговор", "саммит", "дипломат",
				"санкци", "резолюци", "оппозици", "партия", "референдум",
			},
			Conflict: []string{
				"обстрел", "удар", "наступлени", "фронт", "бои", "боев",
				"ракет", "дрон", "бпла", "мобилизаци", "перемири", "всу",
				"военн", "армия", "пво", "эскалаци",
			},
			ConflictNoise: []string{
				"учени", "парад", "фильм о войне", "сериал", "игра", "выставк",
				"годовщин", "реконструкци", "мемориал",
			},

			LocalCrime: []string{
				"пья", "пьян", "алкогол", "дебош", "мелк", "карманн", "краж",
				"вор", "граб", "хулиган", "свалил", "угнал велосипед",
				"украл велосипед",
			},
			LocalMarkers: []string{
				"в районе", "на улице", "местный житель", "житель ", "в городе",
				"в посёлке", "в поселке", "по области", "районный",
				"городской суд", "в администрации города",
			},

			Crime: []string{
				"убил", "убий", "зарезал", "расстрел", "стрельб", "нападен",
				"ограб", "граб", "краж", "вор", "изнасил", "мошенн", "преступ",
				"задержан", "арестован", "суд приговорил", "полиция",
				"прокуратур", "поножовщина", "драка", "разбой", "хулиган",
			},
			AllowedGlobalCrime: []string{
				"теракт", "террорист", "terror", "isis", "игил", "аль-каида",
				"массовая стрельба", "вооруженное нападение",
				"чрезвычайное положение", "санкции", "международн", "оон",
				"евросоюз", "нато", "глобальн", "энергетическ", "кибератак",
				"инфраструктур", "авиасообщени", "границ",
			},

			LowValuePatterns: []string{
				"без подробностей", "детали уточняются",
				"следите за обновлениями", "подробности позже",
				"стало известно", "шок", "срочно", "видео", "фото",
			},

			ExcludedSources: []string{
				"Новости Mail.ru",
			},
			ExcludedTopics: []string{
				"гороскоп", "астролог", "шоу-бизнес", "светская хроника",
				"знаменитост",
			},

			HighImportance: []string{
				"чрезвычайн", "катастроф", "взрыв", "теракт", "эвакуаци",
				"погибл", "жертв", "обвал", "дефолт", "отставк", "ультиматум",
				"ядерн", "экстренн",
			},
			MediumImportance: []string{
				"заявил", "предупредил", "потребовал", "запрет", "рост цен",
				"повышени", "сокращени", "забастовк", "протест", "расследовани",
				"соглашени", "контракт",
			},

			StopWords: []string{
				"когда", "после", "будет", "стало", "этого", "также",
				"которые", "россии", "чтобы", "через", "между",
				"about", "with", "that", "this", "from",
			},
		},
	}
}
